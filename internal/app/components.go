package app

import (
	"github.com/rovits/poi-sync-service/internal/ratelimit"
	"github.com/rovits/poi-sync-service/internal/resolver"
	"github.com/rovits/poi-sync-service/internal/status"
	"github.com/rovits/poi-sync-service/internal/store"
	pkgsync "github.com/rovits/poi-sync-service/internal/sync"
	"github.com/rovits/poi-sync-service/internal/sync/coordinator"
)

// Components groups all application components
type Components struct {
	// Store is shared by the resolver and the sync pipeline
	Store store.PlaceStore

	Resolver *resolver.Service

	// Registry tracks sync jobs started through the API or the schedule
	Registry *status.Registry

	Pipeline *pkgsync.Pipeline

	// Coordinator runs jobs and scheduled areas in the background
	Coordinator *coordinator.Coordinator

	Limiter *ratelimit.Limiter
	Lockout *ratelimit.Lockout
}
