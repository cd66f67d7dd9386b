// Package coordinator runs sync pipelines as asynchronous jobs.
//
// Jobs come from two places:
//
//   - Submit, called by the HTTP API for on-demand syncs. The area is
//     validated synchronously; the run itself happens on a goroutine whose
//     context is detached from the caller.
//   - The scheduling loop started by Start, which submits a job for each
//     configured sync area whenever its interval has elapsed.
//
// Every job is tracked in a status.Registry. Its final phase is written in a
// deferred block, so a job that panics is still reported as failed.
//
// # Usage
//
//	c := coordinator.New(pipeline, registry, coordinator.WithAreas(areas...))
//	go c.Start(ctx)
//	...
//	c.Stop()
//	c.Wait()
package coordinator
