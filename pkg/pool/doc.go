// Package pool implements type-safe object pooling for brightsync's hot
// paths. It provides unified memory management for reusable objects,
// reducing garbage collection pressure during large snapshot syncs.
//
// # Architecture
//
// The pool package uses Go generics to provide type-safe pooling for any
// object type. It builds on sync.Pool but adds statistics tracking and
// automatic reset functionality.
//
// Core Types:
//
//   - Pool[T]: Generic pool implementation for any type T
//   - Global pools: Pre-configured pools for common types
//
// # Global Pools
//
// Pre-configured pools are available for common types:
//
//	var (
//		MapPool         = New(...) // Generic maps
//		StringSlicePool = New(...) // String slices
//		ByteSlicePool   = New(...) // Byte buffers
//	)
//
// # Usage Patterns
//
// Basic pool usage:
//
//	payload := pool.GetMap()
//	defer pool.PutMap(payload)
//
//	payload["dataset_id"] = datasetID
//	payload["filter"] = filter
//
// Creating a custom pool:
//
//	myPool := pool.New(
//	    func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 1024)) },
//	    func(b *bytes.Buffer) { b.Reset() },
//	)
//
// # Performance Guidelines
//
// 1. Always release objects back to pools
// 2. Reset objects properly to avoid data leaks
// 3. Never pool an object that a destination or row still references
// 4. Avoid holding pool objects across goroutines
package pool
