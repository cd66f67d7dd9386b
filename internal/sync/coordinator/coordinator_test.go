package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/rovits/poi-sync-service/internal/config"
	"github.com/rovits/poi-sync-service/internal/places"
	"github.com/rovits/poi-sync-service/internal/status"
	pkgsync "github.com/rovits/poi-sync-service/internal/sync"
	syncmocks "github.com/rovits/poi-sync-service/internal/sync/mocks"
)

var validRequest = pkgsync.Request{Lat: 41, Lng: 29, RadiusMeters: 1000, Type: "cafe"}

func TestSubmitValidationError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := syncmocks.NewMockRunner(ctrl)
	registry := status.NewRegistry()
	c := New(runner, registry)

	jobID, err := c.Submit(context.Background(), pkgsync.Request{Lat: 100, Lng: 0, RadiusMeters: 10})
	require.Error(t, err)
	var vErr *places.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Empty(t, jobID)
	assert.Zero(t, registry.Len())
}

func TestSubmitOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		run       func(context.Context, pkgsync.Request) (*pkgsync.Result, error)
		wantPhase status.Phase
		wantError string
	}{
		{
			name: "completed",
			run: func(context.Context, pkgsync.Request) (*pkgsync.Result, error) {
				return &pkgsync.Result{Saved: 3}, nil
			},
			wantPhase: status.PhaseCompleted,
		},
		{
			name: "failed",
			run: func(context.Context, pkgsync.Request) (*pkgsync.Result, error) {
				return nil, pkgsync.ErrAllDetailsFailed
			},
			wantPhase: status.PhaseFailed,
			wantError: pkgsync.ErrAllDetailsFailed.Error(),
		},
		{
			name: "panic",
			run: func(context.Context, pkgsync.Request) (*pkgsync.Result, error) {
				panic("nil map")
			},
			wantPhase: status.PhaseFailed,
			wantError: "sync panicked: nil map",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			runner := syncmocks.NewMockRunner(ctrl)
			runner.EXPECT().Run(gomock.Any(), validRequest).DoAndReturn(tt.run)

			registry := status.NewRegistry()
			c := New(runner, registry)

			jobID, err := c.Submit(context.Background(), validRequest)
			require.NoError(t, err)
			c.Wait()

			job, ok := registry.GetStatus(jobID)
			require.True(t, ok)
			assert.Equal(t, tt.wantPhase, job.Phase)
			assert.Equal(t, tt.wantError, job.Error)
		})
	}
}

func TestSubmitReturnsBeforeRunFinishes(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := syncmocks.NewMockRunner(ctrl)
	release := make(chan struct{})
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ pkgsync.Request) (*pkgsync.Result, error) {
			<-release
			// the job outlives the submitting request
			return &pkgsync.Result{}, ctx.Err()
		})

	registry := status.NewRegistry()
	c := New(runner, registry)

	ctx, cancel := context.WithCancel(context.Background())
	jobID, err := c.Submit(ctx, validRequest)
	require.NoError(t, err)
	cancel()

	job, ok := registry.GetStatus(jobID)
	require.True(t, ok)
	assert.Equal(t, status.PhaseInProgress, job.Phase)

	close(release)
	c.Wait()

	job, ok = registry.GetStatus(jobID)
	require.True(t, ok)
	assert.Equal(t, status.PhaseCompleted, job.Phase)
}

// fakeRunner counts runs and optionally blocks until released
type fakeRunner struct {
	calls   atomic.Int32
	release chan struct{}
}

func (r *fakeRunner) Run(context.Context, pkgsync.Request) (*pkgsync.Result, error) {
	r.calls.Add(1)
	if r.release != nil {
		<-r.release
	}
	return &pkgsync.Result{Saved: 1}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestStartSubmitsDueAreas(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	clock := &fakeClock{now: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	c := New(runner, status.NewRegistry(),
		WithClock(clock.Now),
		WithPollingInterval(5*time.Millisecond),
		WithAreas(Area{Name: "downtown", Request: validRequest, Interval: time.Hour}),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background()) }()

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, time.Millisecond)

	// ticks inside the interval do not resubmit
	time.Sleep(30 * time.Millisecond)
	c.Wait()
	assert.Equal(t, int32(1), runner.calls.Load())

	clock.Advance(2 * time.Hour)
	require.Eventually(t, func() bool { return runner.calls.Load() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, c.Stop())
	require.NoError(t, <-errCh)
	c.Wait()
}

func TestStartSkipsAreaStillRunning(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{release: make(chan struct{})}
	clock := &fakeClock{now: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	c := New(runner, status.NewRegistry(),
		WithClock(clock.Now),
		WithPollingInterval(5*time.Millisecond),
		WithAreas(Area{Name: "downtown", Request: validRequest, Interval: time.Minute}),
	)

	go func() { _ = c.Start(context.Background()) }()
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, time.Millisecond)

	clock.Advance(time.Hour)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), runner.calls.Load())

	close(runner.release)
	require.Eventually(t, func() bool { return runner.calls.Load() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, c.Stop())
	c.Wait()
}

func TestStartWithoutAreas(t *testing.T) {
	t.Parallel()

	c := New(&fakeRunner{}, status.NewRegistry())
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop())
	assert.Error(t, c.Start(context.Background()), "a coordinator can only be started once")
}

func TestStopBeforeStart(t *testing.T) {
	t.Parallel()

	c := New(&fakeRunner{}, status.NewRegistry())
	assert.NoError(t, c.Stop())
}

func TestCalculatePollingInterval(t *testing.T) {
	t.Parallel()

	for range 100 {
		d := calculatePollingInterval()
		assert.GreaterOrEqual(t, d, basePollingInterval-pollingJitter)
		assert.Less(t, d, basePollingInterval+pollingJitter)
	}
}

func TestAreasFromConfig(t *testing.T) {
	t.Parallel()

	areas := AreasFromConfig([]config.SyncAreaConfig{
		{
			Name: "downtown", Lat: 41, Lng: 29, Radius: 3000, Type: "cafe",
			SyncPolicy: &config.SyncPolicyConfig{Interval: "6h"},
		},
		{Name: "airport", Lat: 40, Lng: 28, Radius: 500},
	})

	require.Len(t, areas, 2)
	assert.Equal(t, Area{
		Name:     "downtown",
		Request:  pkgsync.Request{Lat: 41, Lng: 29, RadiusMeters: 3000, Type: "cafe"},
		Interval: 6 * time.Hour,
	}, areas[0])
	assert.Equal(t, "restaurant", areas[1].Request.Type)
	assert.Zero(t, areas[1].Interval)
}
