package generator

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"budgetsense/internal/core"
)

func newTestGenerator(t *testing.T, opts ...Option) *Generator {
	t.Helper()
	g, err := NewSeeded(core.DefaultTables(), 42, 0, opts...)
	if err != nil {
		t.Fatalf("NewSeeded: %v", err)
	}
	return g
}

func TestRecordRanges(t *testing.T) {
	g := newTestGenerator(t)
	tb := core.DefaultTables()
	for i := 0; i < 5000; i++ {
		r := g.Record()
		if r.ProjectsCount < 10 || r.ProjectsCount > 200 {
			t.Fatalf("projects_count %d out of range", r.ProjectsCount)
		}
		if r.DevIndex < 0.3 || r.DevIndex > 0.9 {
			t.Fatalf("dev_index %v out of range", r.DevIndex)
		}
		if r.PrevBudget < 10000 || r.PrevBudget > 150000 {
			t.Fatalf("prev_budget %v out of range", r.PrevBudget)
		}
		if r.GDPImpact < 0.5 || r.GDPImpact > 4.0 {
			t.Fatalf("gdp_impact %v out of range", r.GDPImpact)
		}
		if r.AllocatedBudget <= 0 {
			t.Fatalf("allocated_budget %v not positive", r.AllocatedBudget)
		}
		if core.Round2(r.DevIndex) != r.DevIndex || core.Round2(r.PrevBudget) != r.PrevBudget || core.Round2(r.GDPImpact) != r.GDPImpact {
			t.Fatalf("record not rounded to 2 decimals: %+v", r)
		}
		if !slices.Contains(tb.Ministries, r.Ministry) || !slices.Contains(tb.Regions, r.RegionImpact) {
			t.Fatalf("categorical outside tables: %+v", r)
		}
		if _, ok := tb.Weight(r.PriorityLevel); !ok {
			t.Fatalf("priority outside tables: %q", r.PriorityLevel)
		}
	}
}

func TestRecordAllocationWithinNoiseBounds(t *testing.T) {
	g := newTestGenerator(t)
	tb := core.DefaultTables()
	for i := 0; i < 2000; i++ {
		r := g.Record()
		w, _ := tb.Weight(r.PriorityLevel)
		lo := Allocate(r.PrevBudget, r.DevIndex, w, r.GDPImpact, tb.Noise.Min)
		hi := Allocate(r.PrevBudget, r.DevIndex, w, r.GDPImpact, tb.Noise.Max)
		if r.AllocatedBudget < lo || r.AllocatedBudget > hi {
			t.Fatalf("allocated %v outside [%v, %v]", r.AllocatedBudget, lo, hi)
		}
	}
}

func TestRecordZeroNoiseIsDeterministic(t *testing.T) {
	g := newTestGenerator(t, WithFixedNoise(0))
	tb := core.DefaultTables()
	for i := 0; i < 1000; i++ {
		r := g.Record()
		w, _ := tb.Weight(r.PriorityLevel)
		want := core.Round2(r.PrevBudget * (1 + 0.3*r.DevIndex + 0.2*w + 0.1*r.GDPImpact))
		if r.AllocatedBudget != want {
			t.Fatalf("allocated %v, want %v for %+v", r.AllocatedBudget, want, r)
		}
	}
}

func TestAllocate(t *testing.T) {
	cases := []struct {
		name                          string
		prev, dev, weight, gdp, noise float64
		want                          float64
	}{
		{"minimums", 10000, 0.3, 0.4, 0.5, 0, 12200},
		{"maximums", 150000, 0.9, 1.0, 4.0, 0, 280500},
		{"negative noise", 20000, 0.5, 0.6, 2.0, -0.05, 28400},
		{"positive noise", 20000, 0.5, 0.6, 2.0, 0.10, 31400},
		{"rounds to cents", 12345.67, 0.37, 0.8, 1.23, 0.01, 17333.32},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allocate(tc.prev, tc.dev, tc.weight, tc.gdp, tc.noise); got != tc.want {
				t.Fatalf("Allocate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAllocateMonotonicInPriority(t *testing.T) {
	tb := core.DefaultTables()
	weights := []float64{}
	for _, name := range []string{"Low", "Medium", "High", "Very High"} {
		w, ok := tb.Weight(name)
		if !ok {
			t.Fatalf("missing priority %s", name)
		}
		weights = append(weights, w)
	}

	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 500; i++ {
		prev := core.Round2(10000 + rng.Float64()*140000)
		dev := core.Round2(0.3 + rng.Float64()*0.6)
		gdp := core.Round2(0.5 + rng.Float64()*3.5)
		last := 0.0
		for _, w := range weights {
			got := Allocate(prev, dev, w, gdp, 0)
			if got <= last {
				t.Fatalf("allocation not increasing with weight %v: %v <= %v", w, got, last)
			}
			last = got
		}
	}
}

func TestNewRejectsEmptyTables(t *testing.T) {
	for name, mutate := range map[string]func(*core.Tables){
		"ministries": func(tb *core.Tables) { tb.Ministries = nil },
		"priorities": func(tb *core.Tables) { tb.Priorities = nil },
		"regions":    func(tb *core.Tables) { tb.Regions = nil },
	} {
		t.Run(name, func(t *testing.T) {
			tb := core.DefaultTables()
			mutate(&tb)
			_, err := NewSeeded(tb, 1, 1)
			var cfgErr *core.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestGeneratorOwnsItsTables(t *testing.T) {
	tb := core.DefaultTables()
	tb.Ministries = []string{"Health"}
	g, err := NewSeeded(tb, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	tb.Ministries[0] = "Mutated"
	if r := g.Record(); r.Ministry != "Health" {
		t.Fatalf("generator saw caller mutation: %q", r.Ministry)
	}
}

func TestCorpusRecordsRestartable(t *testing.T) {
	c := Corpus{Tables: core.DefaultTables(), Seed: 99, Rows: 2500, ChunkSize: 1000}
	seq, err := c.Records()
	if err != nil {
		t.Fatal(err)
	}
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if len(first) != 2500 {
		t.Fatalf("expected 2500 rows, got %d", len(first))
	}
	if !slices.Equal(first, second) {
		t.Fatal("ranging twice produced different rows")
	}
}

func TestCorpusRecordsEarlyStop(t *testing.T) {
	c := Corpus{Tables: core.DefaultTables(), Seed: 1, Rows: 100}
	seq, err := c.Records()
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for range seq {
		n++
		if n == 10 {
			break
		}
	}
	if n != 10 {
		t.Fatalf("expected to stop at 10, got %d", n)
	}
}

func TestCorpusBuildMatchesSequenceForAnyWorkerCount(t *testing.T) {
	c := Corpus{Tables: core.DefaultTables(), Seed: 2024, Rows: 3333, ChunkSize: 250}
	seq, err := c.Records()
	if err != nil {
		t.Fatal(err)
	}
	want := slices.Collect(seq)

	for _, workers := range []int{1, 3, 8, 0} {
		var got []core.BudgetRecord
		err := c.Build(context.Background(), workers, func(rows []core.BudgetRecord) error {
			got = append(got, rows...)
			return nil
		})
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if !slices.Equal(got, want) {
			t.Fatalf("workers=%d produced a different corpus", workers)
		}
	}
}

func TestCorpusSeedsDiffer(t *testing.T) {
	a, _ := Corpus{Tables: core.DefaultTables(), Seed: 1, Rows: 50}.Records()
	b, _ := Corpus{Tables: core.DefaultTables(), Seed: 2, Rows: 50}.Records()
	if slices.Equal(slices.Collect(a), slices.Collect(b)) {
		t.Fatal("different seeds produced identical corpora")
	}
}

func TestCorpusBuildStopsOnEmitError(t *testing.T) {
	c := Corpus{Tables: core.DefaultTables(), Seed: 5, Rows: 1000, ChunkSize: 100}
	boom := errors.New("disk full")
	calls := 0
	err := c.Build(context.Background(), 2, func([]core.BudgetRecord) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected emit error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected emit to be called once, got %d", calls)
	}
}

func TestCorpusBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := Corpus{Tables: core.DefaultTables(), Seed: 5, Rows: 1000, ChunkSize: 100}
	err := c.Build(ctx, 2, func([]core.BudgetRecord) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCorpusRejectsBadInput(t *testing.T) {
	tb := core.DefaultTables()
	tb.Regions = nil
	if _, err := (Corpus{Tables: tb, Rows: 10}).Records(); err == nil {
		t.Fatal("expected error for empty region table")
	}
	if _, err := (Corpus{Tables: core.DefaultTables(), Rows: -1}).Records(); err == nil {
		t.Fatal("expected error for negative rows")
	}
	err := Corpus{Tables: tb, Rows: 10}.Build(context.Background(), 1, func([]core.BudgetRecord) error { return nil })
	var cfgErr *core.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError from Build, got %v", err)
	}
}

func TestCorpusZeroRows(t *testing.T) {
	seq, err := Corpus{Tables: core.DefaultTables(), Rows: 0}.Records()
	if err != nil {
		t.Fatal(err)
	}
	if got := len(slices.Collect(seq)); got != 0 {
		t.Fatalf("expected no rows, got %d", got)
	}
}
