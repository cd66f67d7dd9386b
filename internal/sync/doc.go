// Package sync implements bulk synchronization of an area into the place
// store.
//
// A run resolves the place stubs of one area with a nearby search, fetches
// the details of every stub through a bounded worker pool and upserts each
// successful detail as a record of the requested type. Writes are
// unconditional: running the same area twice leaves one record per place id
// holding the latest values.
//
// # Failure model
//
//   - A nearby search failure fails the run.
//   - A failed detail lookup drops that stub only; siblings keep running.
//   - When every lookup fails the run fails with ErrAllDetailsFailed and
//     nothing is written.
//   - A failed upsert is logged and skipped.
//
// The sync/coordinator subpackage runs pipelines as asynchronous jobs, both
// on demand and on the schedule configured for each sync area.
package sync
