// Package pagination partitions the entity id range into chunks and fetches
// each chunk concurrently.
//
// The total number of ids comes either from a fixed constant or from the
// `count` field of the listing endpoint (see ResolveCount). The range
// [1, count] is split into contiguous chunks of ChunkSize ids; the final chunk
// may be shorter and never reaches past count.
//
// Example usage:
//
//	bf, err := pagination.NewBatchFetcher[*people.Record](fetcher, pagination.DefaultConfig())
//	for _, ids := range bf.Chunks(count) {
//		records, err := bf.FetchChunk(ctx, ids)
//		...
//	}
//
// FetchChunk is a join barrier: it returns only once every fetch of the chunk
// has completed, and the first failure aborts the whole chunk.
package pagination
