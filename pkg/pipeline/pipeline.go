// Package pipeline drives the load: it partitions the id range into chunks,
// fetches each chunk concurrently and hands every fetched chunk to the
// persister as one unit of work.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/swapi-loader/pkg/pagination"
	"github.com/Sternrassler/swapi-loader/pkg/people"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Fetcher resolves single ids and reports the upstream total.
type Fetcher interface {
	Fetch(ctx context.Context, id int) (*people.Record, error)
	Count(ctx context.Context) (int, error)
}

// Persister commits one chunk of records atomically.
type Persister interface {
	Persist(ctx context.Context, records []*people.Record) error
}

// Config holds pipeline configuration.
type Config struct {
	// ChunkSize is the number of ids fetched concurrently per chunk.
	ChunkSize int

	// TotalCount fixes the id range to [1, TotalCount]. 0 queries the API.
	TotalCount int

	// Pipelined lets the next chunk's fetches overlap the current chunk's
	// commit, at most one chunk ahead. When false every unit of work is
	// awaited before the next chunk is fetched.
	Pipelined bool

	// FetchTimeout bounds each id fetch (0 = none).
	FetchTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize: 5,
	}
}

// Summary describes a completed run.
type Summary struct {
	Count    int
	Chunks   int
	Fetched  int
	NotFound int
	Elapsed  time.Duration
}

// Pipeline is the Batcher → Fetcher → Persister driver.
type Pipeline struct {
	fetcher   Fetcher
	batches   *pagination.BatchFetcher[*people.Record]
	persister Persister
	config    Config
	logger    zerolog.Logger
}

// New creates a pipeline.
func New(fetcher Fetcher, persister Persister, cfg Config) (*Pipeline, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if persister == nil {
		return nil, fmt.Errorf("persister is required")
	}

	batches, err := pagination.NewBatchFetcher[*people.Record](fetcher, pagination.Config{
		ChunkSize: cfg.ChunkSize,
		Timeout:   cfg.FetchTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		fetcher:   fetcher,
		batches:   batches,
		persister: persister,
		config:    cfg,
		logger:    log.With().Str("component", "pipeline").Logger(),
	}, nil
}

// batch is one fetched chunk on its way to the persister.
type batch struct {
	index   int
	ids     []int
	records []*people.Record
}

// Run loads every id and returns once all units of work have committed.
// The first fetch or persistence failure aborts the run.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	var summary Summary

	count, err := pagination.ResolveCount(ctx, p.config.TotalCount, p.fetcher)
	if err != nil {
		return summary, err
	}
	chunks := p.batches.Chunks(count)
	summary.Count = count

	p.logger.Info().
		Int("count", count).
		Int("chunk_size", p.config.ChunkSize).
		Int("chunks", len(chunks)).
		Bool("pipelined", p.config.Pipelined).
		Msg("Starting load")

	if p.config.Pipelined {
		err = p.runPipelined(ctx, chunks, &summary)
	} else {
		err = p.runSerialized(ctx, chunks, &summary)
	}
	summary.Elapsed = time.Since(start)

	if err != nil {
		p.logger.Error().
			Err(err).
			Int("chunks_done", summary.Chunks).
			Dur("duration", summary.Elapsed).
			Msg("Load aborted")
		return summary, err
	}

	p.logger.Info().
		Int("count", summary.Count).
		Int("chunks", summary.Chunks).
		Int("fetched", summary.Fetched).
		Int("not_found", summary.NotFound).
		Dur("duration", summary.Elapsed).
		Msg("Load complete")

	return summary, nil
}

// runSerialized launches each chunk's persistence as a detached unit, then
// waits for every pending unit before fetching the next chunk.
func (p *Pipeline) runSerialized(ctx context.Context, chunks [][]int, summary *Summary) error {
	var units errgroup.Group

	for i, ids := range chunks {
		records, err := p.batches.FetchChunk(ctx, ids)
		if err != nil {
			return err
		}
		summary.add(records)

		b := batch{index: i, ids: ids, records: records}
		units.Go(func() error {
			return p.persist(ctx, b)
		})

		if err := units.Wait(); err != nil {
			return err
		}
		summary.Chunks++
	}

	return nil
}

// runPipelined hands chunks to a single persisting consumer over an
// unbuffered channel, so fetching runs at most one chunk ahead of commits.
func (p *Pipeline) runPipelined(ctx context.Context, chunks [][]int, summary *Summary) error {
	g, gctx := errgroup.WithContext(ctx)
	handoff := make(chan batch)

	var fetched Summary
	g.Go(func() error {
		defer close(handoff)
		for i, ids := range chunks {
			records, err := p.batches.FetchChunk(gctx, ids)
			if err != nil {
				return err
			}
			fetched.add(records)

			select {
			case handoff <- batch{index: i, ids: ids, records: records}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	// A chunk that reached the consumer is committed in full even when a
	// later fetch fails, so persistence runs on the parent context.
	committed := 0
	g.Go(func() error {
		for b := range handoff {
			if err := p.persist(ctx, b); err != nil {
				return err
			}
			committed++
		}
		return nil
	})

	err := g.Wait()
	summary.Fetched += fetched.Fetched
	summary.NotFound += fetched.NotFound
	summary.Chunks += committed
	return err
}

func (p *Pipeline) persist(ctx context.Context, b batch) error {
	start := time.Now()

	if err := p.persister.Persist(ctx, b.records); err != nil {
		return fmt.Errorf("persist chunk %d %v: %w", b.index, b.ids, err)
	}

	p.logger.Info().
		Int("chunk", b.index).
		Ints("ids", b.ids).
		Int("records", len(b.records)).
		Dur("duration", time.Since(start)).
		Msg("Chunk persisted")

	return nil
}

func (s *Summary) add(records []*people.Record) {
	for _, r := range records {
		s.Fetched++
		if r.NotFound {
			s.NotFound++
		}
	}
}
