// Package draft implements the in-memory order draft an operator composes
// before submitting a sale.
//
// A Draft keeps its lines in insertion order and recomputes subtotal, tax and
// total together after every change. Observers receive an immutable Snapshot
// after each mutation, which is how a rendering surface stays in sync without
// the draft knowing about it.
package draft

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultSubmitTimeout bounds a submission unless WithSubmitTimeout is given.
const DefaultSubmitTimeout = 15 * time.Second

// State is the lifecycle stage of a draft.
type State int

const (
	StateEmpty State = iota
	StateBuilding
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilding:
		return "building"
	case StateSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent view of a draft at one point in time.
type Snapshot struct {
	Lines  []Line
	Totals Totals
	State  State
}

// Empty reports whether the snapshot has no lines. Surfaces use it to clear
// their inputs and disable submission.
func (s Snapshot) Empty() bool { return len(s.Lines) == 0 }

// Observer is notified after every change to a draft.
type Observer interface {
	DraftChanged(Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

// DraftChanged calls f(s).
func (f ObserverFunc) DraftChanged(s Snapshot) { f(s) }

// Option configures a Draft.
type Option func(*Draft)

// WithTaxRate sets the tax rate applied to the subtotal.
func WithTaxRate(rate decimal.Decimal) Option {
	return func(d *Draft) { d.taxRate = rate }
}

// WithObserver registers o at construction.
func WithObserver(o Observer) Option {
	return func(d *Draft) { d.observers = append(d.observers, o) }
}

// WithSubmitTimeout bounds every submission to timeout.
func WithSubmitTimeout(timeout time.Duration) Option {
	return func(d *Draft) { d.submitTimeout = timeout }
}

// WithLineIDs replaces the line ID generator.
func WithLineIDs(next func() LineID) Option {
	return func(d *Draft) { d.nextID = next }
}

// Draft is an order being composed. It is safe for concurrent use; mutations
// are applied and observed in call order.
type Draft struct {
	mu            sync.Mutex
	lines         []Line
	submitting    bool
	taxRate       decimal.Decimal
	submitTimeout time.Duration
	nextID        func() LineID
	observers     []Observer

	// notify serializes observer callbacks so they see mutations in order.
	notify sync.Mutex
}

// New returns an empty draft.
func New(opts ...Option) *Draft {
	d := &Draft{
		taxRate:       DefaultTaxRate,
		submitTimeout: DefaultSubmitTimeout,
		nextID:        func() LineID { return LineID(uuid.New().String()) },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers o for all following changes. Observers must not mutate
// the draft from DraftChanged.
func (d *Draft) Subscribe(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
}

// Add appends a line. Adding a product already in the draft creates a second
// line; lines are never merged.
func (d *Draft) Add(in LineInput) (Line, error) {
	line, err := in.resolve()
	if err != nil {
		return Line{}, err
	}

	d.mu.Lock()
	if d.submitting {
		d.mu.Unlock()
		return Line{}, ErrSubmitting
	}
	line.ID = d.nextID()
	d.lines = append(d.lines, line)
	d.publish()
	return line, nil
}

// Remove deletes the line with the given ID. Following lines shift down.
func (d *Draft) Remove(id LineID) error {
	d.mu.Lock()
	if d.submitting {
		d.mu.Unlock()
		return ErrSubmitting
	}
	i := slices.IndexFunc(d.lines, func(l Line) bool { return l.ID == id })
	if i < 0 {
		d.mu.Unlock()
		return ErrLineNotFound
	}
	d.lines = slices.Delete(d.lines, i, i+1)
	d.publish()
	return nil
}

// RemoveAt deletes the line at position index of the current sequence.
func (d *Draft) RemoveAt(index int) error {
	d.mu.Lock()
	if d.submitting {
		d.mu.Unlock()
		return ErrSubmitting
	}
	if index < 0 || index >= len(d.lines) {
		d.mu.Unlock()
		return ErrIndexOutOfRange
	}
	d.lines = slices.Delete(d.lines, index, index+1)
	d.publish()
	return nil
}

// Reset discards every line.
func (d *Draft) Reset() error {
	d.mu.Lock()
	if d.submitting {
		d.mu.Unlock()
		return ErrSubmitting
	}
	d.lines = nil
	d.publish()
	return nil
}

// Totals returns the current aggregates. It has no side effects.
func (d *Draft) Totals() Totals {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ComputeTotals(d.lines, d.taxRate)
}

// Lines returns a copy of the current lines in order.
func (d *Draft) Lines() []Line {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.lines)
}

// Len returns the number of lines.
func (d *Draft) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lines)
}

// Snapshot returns the current state.
func (d *Draft) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Draft) snapshotLocked() Snapshot {
	state := StateBuilding
	switch {
	case d.submitting:
		state = StateSubmitting
	case len(d.lines) == 0:
		state = StateEmpty
	}
	return Snapshot{
		Lines:  slices.Clone(d.lines),
		Totals: ComputeTotals(d.lines, d.taxRate),
		State:  state,
	}
}

// publish must be called with d.mu held and releases it. Observers run
// outside d.mu but under d.notify, which is taken before d.mu is released so
// callbacks keep mutation order.
func (d *Draft) publish() {
	snap := d.snapshotLocked()
	observers := slices.Clone(d.observers)

	d.notify.Lock()
	d.mu.Unlock()
	defer d.notify.Unlock()

	for _, o := range observers {
		o.DraftChanged(snap)
	}
}
