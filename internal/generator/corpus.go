package generator

import (
	"context"
	"fmt"
	"iter"
	"runtime"

	"golang.org/x/sync/errgroup"

	"budgetsense/internal/core"
)

// DefaultChunkSize is the number of rows drawn from one seeded source.
const DefaultChunkSize = 1024

// Corpus describes a reproducible corpus: the same tables, seed and chunk
// size always produce the same rows, however many workers build it.
type Corpus struct {
	Tables    core.Tables
	Seed      uint64
	Rows      int
	ChunkSize int
	Options   []Option
}

func (c Corpus) chunkSize() int {
	if c.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return c.ChunkSize
}

func (c Corpus) chunks() int {
	size := c.chunkSize()
	return (c.Rows + size - 1) / size
}

// chunk draws the rows of chunk k from a source seeded with (Seed, k).
func (c Corpus) chunk(k int) ([]core.BudgetRecord, error) {
	g, err := NewSeeded(c.Tables, c.Seed, uint64(k), c.Options...)
	if err != nil {
		return nil, err
	}
	size := c.chunkSize()
	n := min(size, c.Rows-k*size)
	out := make([]core.BudgetRecord, n)
	for i := range out {
		out[i] = g.Record()
	}
	return out, nil
}

// Validate checks the corpus parameters and tables.
func (c Corpus) Validate() error {
	if c.Rows < 0 {
		return fmt.Errorf("row count %d must not be negative", c.Rows)
	}
	if err := c.Tables.Validate(); err != nil {
		return fmt.Errorf("corpus tables: %w", err)
	}
	return nil
}

// Records returns a lazy sequence over the corpus. Ranging over it again
// starts from the first row and yields the same records.
func (c Corpus) Records() (iter.Seq[core.BudgetRecord], error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.Tables = c.Tables.Clone()
	size := c.chunkSize()
	return func(yield func(core.BudgetRecord) bool) {
		for k := range c.chunks() {
			// tables were validated above, so seeding cannot fail
			g, _ := NewSeeded(c.Tables, c.Seed, uint64(k), c.Options...)
			for range min(size, c.Rows-k*size) {
				if !yield(g.Record()) {
					return
				}
			}
		}
	}, nil
}

// Build generates the corpus with up to workers goroutines and hands each
// chunk to emit in corpus order. Workers <= 0 uses GOMAXPROCS.
func (c Corpus) Build(ctx context.Context, workers int, emit func([]core.BudgetRecord) error) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	total := c.chunks()
	for start := 0; start < total; start += workers {
		end := min(start+workers, total)
		batch := make([][]core.BudgetRecord, end-start)

		g, gctx := errgroup.WithContext(ctx)
		for k := start; k < end; k++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				rows, err := c.chunk(k)
				if err != nil {
					return fmt.Errorf("chunk %d: %w", k, err)
				}
				batch[k-start] = rows
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, rows := range batch {
			if err := emit(rows); err != nil {
				return err
			}
		}
	}
	return nil
}
