// Package resolver answers place queries through three tiers: the cache, the
// place store and the external source.
//
// Nearby searches and details lookups are local-first: a cache miss is
// answered from the store when it holds matching records, and the external
// source is only consulted when it does not. Text searches always go to the
// source on a cache miss because the store cannot evaluate free text queries.
//
// Every answer is written back to the cache. Results fetched from the source
// are persisted to the store: nearby stubs through a detached background
// write, text search hits and details synchronously before returning.
//
// The cache is advisory. Read, write and decode failures are logged and
// treated as a miss.
package resolver
