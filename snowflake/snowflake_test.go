package snowflake

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewGenerator_Defaults(t *testing.T) {
	g, err := NewGenerator(Config{WorkerID: 1})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	layout := g.Layout()
	if layout.TimestampBits != 41 || layout.WorkerBits != 10 || layout.SequenceBits != 12 {
		t.Errorf("layout = %d/%d/%d, want 41/10/12",
			layout.TimestampBits, layout.WorkerBits, layout.SequenceBits)
	}
	if !layout.Epoch.Equal(DefaultEpoch) {
		t.Errorf("epoch = %v, want %v", layout.Epoch, DefaultEpoch)
	}
}

func TestNewGenerator_WorkerIDOutOfRange(t *testing.T) {
	for _, id := range []int64{-1, 1024} {
		if _, err := NewGenerator(Config{WorkerID: id}); !errors.Is(err, ErrInvalidWorkerID) {
			t.Errorf("NewGenerator(worker=%d) error = %v, want ErrInvalidWorkerID", id, err)
		}
	}
}

func TestNewGenerator_InvalidLayout(t *testing.T) {
	_, err := NewGenerator(Config{
		WorkerID: 0,
		Layout:   Layout{TimestampBits: 40, WorkerBits: 10, SequenceBits: 12, Epoch: DefaultEpoch},
	})
	if !errors.Is(err, ErrInvalidLayout) {
		t.Errorf("error = %v, want ErrInvalidLayout", err)
	}
}

func TestNextID_Monotonic(t *testing.T) {
	g, err := NewGenerator(Config{WorkerID: 3})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	const n = 5000
	seen := make(map[int64]bool, n)
	var prev int64

	for i := 0; i < n; i++ {
		id, err := g.NextID()
		if err != nil {
			t.Fatalf("NextID() error = %v", err)
		}
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
		prev = id
	}
}

func TestNextID_DecomposeFields(t *testing.T) {
	g, err := NewGenerator(Config{WorkerID: 5})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	id, err := g.NextID()
	if err != nil {
		t.Fatalf("NextID() error = %v", err)
	}

	parts := g.Decompose(id)
	if parts.WorkerID != 5 {
		t.Errorf("WorkerID = %d, want 5", parts.WorkerID)
	}
	if parts.Sequence < 0 || parts.Sequence > 4095 {
		t.Errorf("Sequence = %d, want within [0, 4095]", parts.Sequence)
	}
	if d := time.Since(parts.Timestamp); d < 0 || d > time.Minute {
		t.Errorf("Timestamp = %v, not close to now", parts.Timestamp)
	}
}

func TestNextID_DistinctWorkersNeverCollide(t *testing.T) {
	g1, _ := NewGenerator(Config{WorkerID: 1})
	g2, _ := NewGenerator(Config{WorkerID: 2})

	ids := make(map[int64]bool)
	for i := 0; i < 2000; i++ {
		a, err := g1.NextID()
		if err != nil {
			t.Fatalf("g1.NextID() error = %v", err)
		}
		b, err := g2.NextID()
		if err != nil {
			t.Fatalf("g2.NextID() error = %v", err)
		}
		if ids[a] || ids[b] || a == b {
			t.Fatalf("collision between workers: %d %d", a, b)
		}
		ids[a] = true
		ids[b] = true
	}
}

func TestNextID_Concurrent(t *testing.T) {
	g, _ := NewGenerator(Config{WorkerID: 7})

	const goroutines = 8
	const perG = 500

	var wg sync.WaitGroup
	out := make([][]int64, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			ids := make([]int64, 0, perG)
			for j := 0; j < perG; j++ {
				id, err := g.NextID()
				if err != nil {
					t.Errorf("NextID() error = %v", err)
					return
				}
				ids = append(ids, id)
			}
			out[slot] = ids
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, goroutines*perG)
	for _, ids := range out {
		for _, id := range ids {
			if seen[id] {
				t.Fatalf("duplicate id %d across goroutines", id)
			}
			seen[id] = true
		}
	}
	if len(seen) != goroutines*perG {
		t.Errorf("unique ids = %d, want %d", len(seen), goroutines*perG)
	}
}

func TestNextIDs_Batch(t *testing.T) {
	g, _ := NewGenerator(Config{WorkerID: 9})

	ids, err := g.NextIDs(10000)
	if err != nil {
		t.Fatalf("NextIDs() error = %v", err)
	}
	if len(ids) != 10000 {
		t.Fatalf("len = %d, want 10000", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("ids[%d]=%d not greater than ids[%d]=%d", i, ids[i], i-1, ids[i-1])
		}
	}

	// Batch and single calls share state: the next single id must
	// still be greater than the whole batch.
	next, err := g.NextID()
	if err != nil {
		t.Fatalf("NextID() error = %v", err)
	}
	if next <= ids[len(ids)-1] {
		t.Errorf("NextID()=%d not greater than batch tail %d", next, ids[len(ids)-1])
	}
}

func TestNextIDs_InvalidCount(t *testing.T) {
	g, _ := NewGenerator(Config{WorkerID: 0})

	for _, n := range []int{0, -1} {
		if _, err := g.NextIDs(n); !errors.Is(err, ErrInvalidCount) {
			t.Errorf("NextIDs(%d) error = %v, want ErrInvalidCount", n, err)
		}
	}
}

func TestNextID_ClockMovedBack(t *testing.T) {
	base := time.Now()
	current := base
	g, err := NewGenerator(Config{
		WorkerID:      1,
		MaxClockDrift: 5 * time.Millisecond,
		Clock:         func() time.Time { return current },
	})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	if _, err := g.NextID(); err != nil {
		t.Fatalf("NextID() error = %v", err)
	}

	// Regress well past the tolerated drift.
	current = base.Add(-time.Second)
	if _, err := g.NextID(); !errors.Is(err, ErrClockMovedBack) {
		t.Errorf("error = %v, want ErrClockMovedBack", err)
	}
}

func TestNextID_SequenceRollsWithinMillisecond(t *testing.T) {
	frozen := time.Now()
	g, err := NewGenerator(Config{
		WorkerID: 2,
		Clock:    func() time.Time { return frozen },
	})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	ids, err := g.NextIDs(4096)
	if err != nil {
		t.Fatalf("NextIDs() error = %v", err)
	}

	first := g.Decompose(ids[0])
	last := g.Decompose(ids[len(ids)-1])
	if !first.Timestamp.Equal(last.Timestamp) {
		t.Errorf("batch crossed milliseconds with a frozen clock")
	}
	if last.Sequence != 4095 {
		t.Errorf("last sequence = %d, want 4095", last.Sequence)
	}

	// The millisecond is exhausted and the clock cannot advance, so the
	// generator must refuse rather than duplicate.
	if _, err := g.NextID(); !errors.Is(err, ErrClockMovedBack) {
		t.Errorf("error = %v, want ErrClockMovedBack", err)
	}
}

func TestLayout_DecomposeCustom(t *testing.T) {
	epoch := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	layout := Layout{TimestampBits: 39, WorkerBits: 14, SequenceBits: 10, Epoch: epoch}

	g, err := NewGenerator(Config{WorkerID: 12345, Layout: layout})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	id, err := g.NextID()
	if err != nil {
		t.Fatalf("NextID() error = %v", err)
	}

	parts := layout.Decompose(id)
	if parts.WorkerID != 12345 {
		t.Errorf("WorkerID = %d, want 12345", parts.WorkerID)
	}
	if parts.Timestamp.Before(epoch) {
		t.Errorf("Timestamp = %v, before custom epoch", parts.Timestamp)
	}
}
