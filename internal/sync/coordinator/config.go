package coordinator

import (
	"time"

	"github.com/rovits/poi-sync-service/internal/config"
	pkgsync "github.com/rovits/poi-sync-service/internal/sync"
)

// Area is a sync area scheduled by the coordinator
type Area struct {
	Name     string
	Request  pkgsync.Request
	Interval time.Duration
}

// AreasFromConfig converts the configured sync areas
func AreasFromConfig(cfgs []config.SyncAreaConfig) []Area {
	areas := make([]Area, 0, len(cfgs))
	for i := range cfgs {
		a := &cfgs[i]
		areas = append(areas, Area{
			Name: a.Name,
			Request: pkgsync.Request{
				Lat:          a.Lat,
				Lng:          a.Lng,
				RadiusMeters: a.Radius,
				Type:         a.GetType(),
			},
			Interval: a.GetInterval(),
		})
	}
	return areas
}
