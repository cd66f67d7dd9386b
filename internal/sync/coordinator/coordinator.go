package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/rovits/poi-sync-service/internal/otel"
	"github.com/rovits/poi-sync-service/internal/status"
	pkgsync "github.com/rovits/poi-sync-service/internal/sync"
	"github.com/rovits/poi-sync-service/internal/telemetry"
)

const (
	// basePollingInterval is the base interval at which scheduled areas are checked
	basePollingInterval = time.Minute
	// pollingJitter is the maximum random offset (±10 seconds) applied to the polling interval
	pollingJitter = 10 * time.Second
)

// Coordinator submits and tracks sync jobs
type Coordinator struct {
	runner   pkgsync.Runner
	registry *status.Registry
	areas    []Area
	now      func() time.Time
	interval func() time.Duration

	syncMetrics *telemetry.SyncMetrics
	tracer      trace.Tracer

	jobs sync.WaitGroup

	mu         sync.Mutex
	lastRun    map[string]time.Time
	lastJob    map[string]string
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// Option is a function that configures the coordinator
type Option func(*Coordinator)

// WithAreas sets the areas synced by the scheduling loop
func WithAreas(areas ...Area) Option {
	return func(c *Coordinator) {
		c.areas = append(c.areas, areas...)
	}
}

// WithSyncMetrics sets the sync metrics for the coordinator
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *Coordinator) {
		c.syncMetrics = metrics
	}
}

// WithTracer sets the tracer used for job spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithPollingInterval replaces the jittered polling interval with a fixed one
func WithPollingInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		c.interval = func() time.Duration { return d }
	}
}

// New creates a coordinator running jobs with runner and tracking them in registry
func New(runner pkgsync.Runner, registry *status.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		runner:   runner,
		registry: registry,
		now:      time.Now,
		interval: calculatePollingInterval,
		lastRun:  make(map[string]time.Time),
		lastJob:  make(map[string]string),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// calculatePollingInterval returns the base polling interval with a random jitter applied.
func calculatePollingInterval() time.Duration {
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	jitterOffset := time.Duration(rand.Int64N(int64(2*pollingJitter))) - pollingJitter
	return basePollingInterval + jitterOffset
}

// Submit validates the area, registers a job and runs it in the background.
// Validation errors are returned before any job exists.
func (c *Coordinator) Submit(ctx context.Context, req pkgsync.Request) (string, error) {
	if err := pkgsync.ValidateRequest(req.Lat, req.Lng, req.RadiusMeters); err != nil {
		return "", err
	}

	jobID := c.registry.CreateJob()
	slog.InfoContext(ctx, "Sync job started",
		"job_id", jobID, "lat", req.Lat, "lng", req.Lng, "radius", req.RadiusMeters, "type", req.Type)

	c.jobs.Add(1)
	go c.runJob(context.WithoutCancel(ctx), jobID, req)

	return jobID, nil
}

// Wait blocks until every submitted job has finished
func (c *Coordinator) Wait() {
	c.jobs.Wait()
}

// runJob executes the pipeline and records the final phase of the job
func (c *Coordinator) runJob(ctx context.Context, jobID string, req pkgsync.Request) {
	defer c.jobs.Done()

	ctx, span := otel.StartSpan(ctx, c.tracer, "coordinator.runJob",
		trace.WithAttributes(otel.AttrJobID.String(jobID)))
	defer span.End()

	start := c.now()

	// Set a default here in case the run is killed by an unexpected error.
	phase := status.PhaseFailed
	errMsg := "unexpected failure while syncing"
	saved := 0
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Sync job panicked", "job_id", jobID, "panic", r)
			phase = status.PhaseFailed
			errMsg = fmt.Sprintf("sync panicked: %v", r)
		}
		c.registry.SetStatus(jobID, phase, errMsg)
		c.syncMetrics.RecordSync(ctx, req.Type, c.now().Sub(start), saved, phase == status.PhaseCompleted)
	}()

	result, err := c.runner.Run(ctx, req)
	if err != nil {
		errMsg = err.Error()
		otel.RecordError(span, err)
		slog.ErrorContext(ctx, "Sync job failed", "job_id", jobID, "error", err)
		return
	}

	phase = status.PhaseCompleted
	errMsg = ""
	if result != nil {
		saved = result.Saved
	}
	slog.InfoContext(ctx, "Sync job completed", "job_id", jobID, "saved", saved)
}

// Start runs the scheduling loop until ctx is cancelled or Stop is called.
// Areas are checked once immediately and then on every tick.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancelFunc != nil {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already started")
	}
	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	c.mu.Unlock()

	defer func() {
		close(c.done)
		slog.Info("Background sync coordinator shutting down")
	}()

	if len(c.areas) == 0 {
		slog.Info("No sync areas configured, scheduled sync disabled")
		return nil
	}

	pollingInterval := c.interval()
	slog.Info("Starting background sync coordinator",
		"area_count", len(c.areas),
		"base_interval", basePollingInterval,
		"actual_interval", pollingInterval)

	ticker := time.NewTicker(pollingInterval)
	defer ticker.Stop()

	c.submitDueAreas(coordCtx)

	for {
		select {
		case <-ticker.C:
			c.submitDueAreas(coordCtx)

			// Recalculate interval with new jitter for next iteration
			ticker.Reset(c.interval())
		case <-coordCtx.Done():
			slog.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// Stop cancels the scheduling loop and waits for it to return. Running jobs
// are not interrupted; use Wait to drain them.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping sync coordinator")
		cancel()
		<-c.done
	}
	return nil
}

// submitDueAreas submits a job for every area whose interval has elapsed
// since its last submission. Areas whose previous job is still running are
// skipped.
func (c *Coordinator) submitDueAreas(ctx context.Context) {
	now := c.now()

	for _, area := range c.areas {
		c.mu.Lock()
		last, seen := c.lastRun[area.Name]
		prevJob := c.lastJob[area.Name]
		c.mu.Unlock()

		if seen && (area.Interval <= 0 || now.Sub(last) < area.Interval) {
			continue
		}
		if prevJob != "" {
			if job, ok := c.registry.GetStatus(prevJob); ok && job.Phase == status.PhaseInProgress {
				slog.Debug("Area sync already in progress", "area", area.Name, "job_id", prevJob)
				continue
			}
		}

		jobID, err := c.Submit(ctx, area.Request)
		if err != nil {
			slog.Error("Failed to submit scheduled sync", "area", area.Name, "error", err)
			continue
		}

		c.mu.Lock()
		c.lastRun[area.Name] = now
		c.lastJob[area.Name] = jobID
		c.mu.Unlock()
	}
}
