// Package pagination partitions the entity id range into chunks and fetches
// each chunk concurrently.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	chunksFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapi_chunks_fetched_total",
		Help: "Total id chunks fetched completely",
	})

	chunkFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapi_chunk_fetch_duration_seconds",
		Help:    "Time to fetch every id of a chunk",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// ErrInvalidChunkSize is returned for chunk sizes below 1.
var ErrInvalidChunkSize = errors.New("chunk size must be >= 1")

// Config holds batch fetcher configuration
type Config struct {
	// ChunkSize is the number of ids fetched concurrently per chunk
	ChunkSize int
	// Timeout per item fetch (0 = no timeout)
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize: 5,
	}
}

// ItemFetcher fetches the item for a single id.
type ItemFetcher[T any] interface {
	Fetch(ctx context.Context, id int) (T, error)
}

// Counter reports the total number of ids available upstream.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// BatchFetcher fetches chunks of ids concurrently.
type BatchFetcher[T any] struct {
	fetcher ItemFetcher[T]
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher[T any](fetcher ItemFetcher[T], config Config) (*BatchFetcher[T], error) {
	if config.ChunkSize < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidChunkSize, config.ChunkSize)
	}
	if config.Timeout < 0 {
		config.Timeout = 0
	}

	return &BatchFetcher[T]{
		fetcher: fetcher,
		config:  config,
	}, nil
}

// Chunks partitions [1, count] using the configured chunk size.
func (bf *BatchFetcher[T]) Chunks(count int) [][]int {
	chunks, _ := Chunk(count, bf.config.ChunkSize)
	return chunks
}

// FetchChunk fetches every id of the chunk concurrently and waits for all of
// them. Results are returned in id order. The first failure cancels the
// remaining fetches of the chunk and is returned; no partial result is kept.
func (bf *BatchFetcher[T]) FetchChunk(ctx context.Context, ids []int) ([]T, error) {
	start := time.Now()
	results := make([]T, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			itemCtx := gctx
			if bf.config.Timeout > 0 {
				var cancel context.CancelFunc
				itemCtx, cancel = context.WithTimeout(gctx, bf.config.Timeout)
				defer cancel()
			}

			item, err := bf.fetcher.Fetch(itemCtx, id)
			if err != nil {
				log.Warn().
					Err(err).
					Int("id", id).
					Msg("Item fetch failed")
				return err
			}
			results[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch chunk %v: %w", ids, err)
	}

	chunksFetchedTotal.Inc()
	chunkFetchDuration.Observe(time.Since(start).Seconds())

	log.Debug().
		Ints("ids", ids).
		Dur("duration", time.Since(start)).
		Msg("Chunk fetched")

	return results, nil
}

// Chunk partitions the ordered id range [1, count] into ceil(count/size)
// contiguous chunks. The last chunk may be shorter than size. A count below
// 1 yields no chunks.
func Chunk(count, size int) ([][]int, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidChunkSize, size)
	}
	if count < 1 {
		return nil, nil
	}

	chunks := make([][]int, 0, (count+size-1)/size)
	for start := 1; start <= count; start += size {
		end := min(start+size-1, count)
		chunk := make([]int, 0, end-start+1)
		for id := start; id <= end; id++ {
			chunk = append(chunk, id)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// ResolveCount returns fixed when it is positive, otherwise asks counter.
func ResolveCount(ctx context.Context, fixed int, counter Counter) (int, error) {
	if fixed > 0 {
		return fixed, nil
	}
	if counter == nil {
		return 0, errors.New("no fixed count and no counter configured")
	}

	count, err := counter.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve count: %w", err)
	}
	if count < 0 {
		return 0, fmt.Errorf("resolve count: negative count %d", count)
	}

	return count, nil
}
