package snowflake

import (
	"sync/atomic"
	"time"
)

// DefaultEpoch is the custom epoch used when a layout does not set one.
var DefaultEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Layout describes how the 63 usable bits of an id are split.
type Layout struct {
	// TimestampBits is the width of the millisecond delta field.
	// Default: 41
	TimestampBits uint8

	// WorkerBits is the width of the worker id field.
	// Default: 10
	WorkerBits uint8

	// SequenceBits is the width of the per-millisecond counter.
	// Default: 12
	SequenceBits uint8

	// Epoch is the custom epoch the timestamp delta counts from.
	// Default: DefaultEpoch
	Epoch time.Time
}

// DefaultLayout returns the standard 41/10/12 layout.
func DefaultLayout() Layout {
	return Layout{
		TimestampBits: 41,
		WorkerBits:    10,
		SequenceBits:  12,
		Epoch:         DefaultEpoch,
	}
}

// Validate checks that the field widths are positive and sum to 63.
func (l Layout) Validate() error {
	if l.TimestampBits == 0 || l.WorkerBits == 0 || l.SequenceBits == 0 {
		return ErrInvalidLayout
	}
	if int(l.TimestampBits)+int(l.WorkerBits)+int(l.SequenceBits) != 63 {
		return ErrInvalidLayout
	}
	return nil
}

// MaxWorkerID returns the largest worker id the layout can encode.
func (l Layout) MaxWorkerID() int64 {
	return (1 << l.WorkerBits) - 1
}

// ID is a decomposed identifier.
type ID struct {
	Timestamp time.Time
	WorkerID  int64
	Sequence  int64
}

// Decompose splits an id into its fields using this layout.
func (l Layout) Decompose(id int64) ID {
	seqMask := int64(1)<<l.SequenceBits - 1
	workerMask := int64(1)<<l.WorkerBits - 1

	delta := id >> (l.WorkerBits + l.SequenceBits)
	epoch := l.Epoch
	if epoch.IsZero() {
		epoch = DefaultEpoch
	}

	return ID{
		Timestamp: epoch.Add(time.Duration(delta) * time.Millisecond),
		WorkerID:  (id >> l.SequenceBits) & workerMask,
		Sequence:  id & seqMask,
	}
}

// Config configures a Generator.
type Config struct {
	// WorkerID identifies this generator instance within a fleet.
	// Must fit the layout's worker bit width.
	WorkerID int64

	// Layout is the bit layout. Zero value means DefaultLayout.
	Layout Layout

	// MaxClockDrift is the largest backward clock step the generator
	// waits out before failing with ErrClockMovedBack.
	// Default: 10ms
	MaxClockDrift time.Duration

	// Clock overrides the time source. Default: time.Now.
	Clock func() time.Time
}

// Generator produces monotonically increasing snowflake ids.
//
// All mutable state lives in a single packed word (timestamp delta and
// sequence) updated via compare-and-swap, so concurrent NextID calls
// never block each other.
type Generator struct {
	layout        Layout
	workerID      int64
	workerShifted int64
	epochMilli    int64
	seqMask       int64
	maxDelta      int64
	maxDrift      time.Duration
	clock         func() time.Time

	// state packs lastDelta<<SequenceBits | sequence.
	state atomic.Int64
}

// NewGenerator creates a generator for the given worker id.
func NewGenerator(cfg Config) (*Generator, error) {
	layout := cfg.Layout
	if layout == (Layout{}) {
		layout = DefaultLayout()
	}
	if layout.Epoch.IsZero() {
		layout.Epoch = DefaultEpoch
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if cfg.WorkerID < 0 || cfg.WorkerID > layout.MaxWorkerID() {
		return nil, ErrInvalidWorkerID
	}
	if cfg.MaxClockDrift <= 0 {
		cfg.MaxClockDrift = 10 * time.Millisecond
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Generator{
		layout:        layout,
		workerID:      cfg.WorkerID,
		workerShifted: cfg.WorkerID << layout.SequenceBits,
		epochMilli:    layout.Epoch.UnixMilli(),
		seqMask:       int64(1)<<layout.SequenceBits - 1,
		maxDelta:      int64(1)<<layout.TimestampBits - 1,
		maxDrift:      cfg.MaxClockDrift,
		clock:         cfg.Clock,
	}, nil
}

// WorkerID returns the configured worker id.
func (g *Generator) WorkerID() int64 {
	return g.workerID
}

// Layout returns the configured bit layout.
func (g *Generator) Layout() Layout {
	return g.layout
}

// Decompose splits an id using this generator's layout.
func (g *Generator) Decompose(id int64) ID {
	return g.layout.Decompose(id)
}

// NextID returns the next id. Ids from one generator are strictly
// increasing; a duplicate or decreasing id is never emitted, even when
// the clock steps backwards.
func (g *Generator) NextID() (int64, error) {
	for {
		cur := g.state.Load()
		last := cur >> g.layout.SequenceBits
		seq := cur & g.seqMask
		now := g.millis()

		switch {
		case now > last:
			if now > g.maxDelta {
				return 0, ErrEpochExhausted
			}
			if g.state.CompareAndSwap(cur, now<<g.layout.SequenceBits) {
				return g.compose(now, 0), nil
			}

		case now == last:
			if seq == g.seqMask {
				// Sequence exhausted for this millisecond.
				if err := g.waitPast(last); err != nil {
					return 0, err
				}
				continue
			}
			if g.state.CompareAndSwap(cur, cur+1) {
				return g.compose(now, seq+1), nil
			}

		default:
			// Clock regressed. Wait it out if small, fail otherwise.
			if err := g.catchUp(last, now); err != nil {
				return 0, err
			}
		}
	}
}

// NextIDs returns count strictly increasing ids, reserving sequence
// ranges in bulk so it is cheaper than count NextID calls.
func (g *Generator) NextIDs(count int) ([]int64, error) {
	if count <= 0 {
		return nil, ErrInvalidCount
	}

	ids := make([]int64, 0, count)
	for len(ids) < count {
		cur := g.state.Load()
		last := cur >> g.layout.SequenceBits
		seq := cur & g.seqMask
		now := g.millis()
		remaining := int64(count - len(ids))

		switch {
		case now > last:
			if now > g.maxDelta {
				return nil, ErrEpochExhausted
			}
			n := min(remaining, g.seqMask+1)
			if g.state.CompareAndSwap(cur, now<<g.layout.SequenceBits|(n-1)) {
				for s := int64(0); s < n; s++ {
					ids = append(ids, g.compose(now, s))
				}
			}

		case now == last:
			avail := g.seqMask - seq
			if avail == 0 {
				if err := g.waitPast(last); err != nil {
					return nil, err
				}
				continue
			}
			n := min(remaining, avail)
			if g.state.CompareAndSwap(cur, cur+n) {
				for s := seq + 1; s <= seq+n; s++ {
					ids = append(ids, g.compose(now, s))
				}
			}

		default:
			if err := g.catchUp(last, now); err != nil {
				return nil, err
			}
		}
	}
	return ids, nil
}

func (g *Generator) compose(delta, seq int64) int64 {
	return delta<<(g.layout.WorkerBits+g.layout.SequenceBits) | g.workerShifted | seq
}

func (g *Generator) millis() int64 {
	return g.clock().UnixMilli() - g.epochMilli
}

// waitPast blocks until the clock has advanced beyond the given delta.
func (g *Generator) waitPast(delta int64) error {
	deadline := time.Now().Add(g.maxDrift + 2*time.Millisecond)
	for g.millis() <= delta {
		if time.Now().After(deadline) {
			return ErrClockMovedBack
		}
		time.Sleep(100 * time.Microsecond)
	}
	return nil
}

// catchUp handles a backward clock step: a small step is waited out,
// a large one fails explicitly.
func (g *Generator) catchUp(last, now int64) error {
	if time.Duration(last-now)*time.Millisecond > g.maxDrift {
		return ErrClockMovedBack
	}
	return g.waitPast(last - 1)
}
