// Package progress reports the advance of long-running operations such as
// the clone transfer and the copy batch.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// Tracker interface defines methods for tracking operation progress
type Tracker interface {
	Start(operation string) *Operation
	Update(current, total int64)
	Complete()
	Error(err error)
}

// Status is the lifecycle state of an Operation.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Unit selects how ConsoleTracker renders counts.
type Unit int

const (
	UnitItems Unit = iota
	UnitBytes
)

// Operation represents a tracked operation
type Operation struct {
	Name         string
	StartTime    time.Time
	Status       Status
	LastUpdate   time.Time
	LastCurrent  int64
	LastTotal    int64
	ProgressRate float64 // units per second, averaged over RateHistory
	RateHistory  []float64
	EstimatedETA time.Time
	Err          error
}

const (
	rateHistorySize = 10 // Keep last 10 rate measurements for averaging
)

func newOperation(name string, now time.Time) *Operation {
	return &Operation{
		Name:        name,
		StartTime:   now,
		LastUpdate:  now,
		Status:      StatusInProgress,
		RateHistory: make([]float64, 0, rateHistorySize),
	}
}

// Fraction returns LastCurrent/LastTotal clamped to [0, 1], or 0 when the
// total is unknown.
func (o *Operation) Fraction() float64 {
	if o.LastTotal <= 0 {
		return 0
	}
	f := float64(o.LastCurrent) / float64(o.LastTotal)
	return min(max(f, 0), 1)
}

// observe records a new measurement and refreshes the rate and ETA.
func (o *Operation) observe(now time.Time, current, total int64) {
	if o.LastCurrent > 0 {
		elapsed := now.Sub(o.LastUpdate).Seconds()
		if elapsed > 0 {
			rate := float64(current-o.LastCurrent) / elapsed

			if len(o.RateHistory) >= rateHistorySize {
				o.RateHistory = o.RateHistory[1:]
			}
			o.RateHistory = append(o.RateHistory, rate)

			var sum float64
			for _, r := range o.RateHistory {
				sum += r
			}
			o.ProgressRate = sum / float64(len(o.RateHistory))

			if o.ProgressRate > 0 {
				remaining := float64(total-current) / o.ProgressRate
				o.EstimatedETA = now.Add(time.Duration(remaining * float64(time.Second)))
			}
		}
	}

	o.LastUpdate = now
	o.LastCurrent = current
	o.LastTotal = total
}

// DefaultTracker records progress without producing output.
type DefaultTracker struct {
	mu               sync.Mutex
	CurrentOperation *Operation

	now func() time.Time
}

func (t *DefaultTracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Start begins tracking a new operation
func (t *DefaultTracker) Start(operation string) *Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.CurrentOperation = newOperation(operation, t.clock())
	return t.CurrentOperation
}

// Update updates the progress of the current operation
func (t *DefaultTracker) Update(current, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.CurrentOperation == nil {
		return
	}
	t.CurrentOperation.observe(t.clock(), current, total)
}

// Complete marks the operation as completed
func (t *DefaultTracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.CurrentOperation != nil {
		t.CurrentOperation.Status = StatusCompleted
	}
}

// Error marks the operation as failed with an error
func (t *DefaultTracker) Error(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.CurrentOperation != nil {
		t.CurrentOperation.Status = StatusFailed
		t.CurrentOperation.Err = err
	}
}

// ConsoleTracker prints progress lines. On a terminal it redraws a single
// line; otherwise it prints at most one line per interval.
type ConsoleTracker struct {
	mu               sync.Mutex
	out              io.Writer
	unit             Unit
	interactive      bool
	interval         time.Duration
	lastPrint        time.Time
	currentOperation *Operation

	now func() time.Time
}

// ConsoleOption configures a ConsoleTracker.
type ConsoleOption func(*ConsoleTracker)

// WithUnit sets how counts are rendered.
func WithUnit(u Unit) ConsoleOption {
	return func(t *ConsoleTracker) { t.unit = u }
}

// WithInterval sets the minimum time between non-interactive lines.
func WithInterval(d time.Duration) ConsoleOption {
	return func(t *ConsoleTracker) { t.interval = d }
}

// NewConsoleTracker creates a tracker writing to out. Terminal detection is
// done on out when it is an *os.File.
func NewConsoleTracker(out io.Writer, opts ...ConsoleOption) *ConsoleTracker {
	t := &ConsoleTracker{
		out:         out,
		interactive: IsTerminal(out),
		interval:    2 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (t *ConsoleTracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Start begins tracking a new operation
func (t *ConsoleTracker) Start(operation string) *Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentOperation = newOperation(operation, t.clock())
	t.lastPrint = time.Time{}
	fmt.Fprintf(t.out, "Starting: %s\n", operation)
	return t.currentOperation
}

// Update updates the progress of the current operation
func (t *ConsoleTracker) Update(current, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op := t.currentOperation
	if op == nil {
		return
	}

	now := t.clock()
	op.observe(now, current, total)

	done := total > 0 && current >= total
	if !t.interactive && !done && !t.lastPrint.IsZero() && now.Sub(t.lastPrint) < t.interval {
		return
	}
	t.lastPrint = now

	eta := "calculating..."
	if !op.EstimatedETA.IsZero() {
		remaining := op.EstimatedETA.Sub(now).Round(time.Second)
		if remaining > 0 {
			eta = remaining.String()
		} else {
			eta = "almost done"
		}
	}

	line := fmt.Sprintf("%s: %.1f%% (%s of %s, %s, ETA: %s)",
		op.Name, op.Fraction()*100, t.amount(current), t.amount(total), t.rate(op.ProgressRate), eta)
	if t.interactive {
		fmt.Fprintf(t.out, "\r%s", line)
	} else {
		fmt.Fprintln(t.out, line)
	}
}

func (t *ConsoleTracker) amount(n int64) string {
	if t.unit == UnitBytes {
		return humanize.IBytes(uint64(max(n, 0)))
	}
	return humanize.Comma(n)
}

func (t *ConsoleTracker) rate(r float64) string {
	if t.unit == UnitBytes {
		return humanize.IBytes(uint64(max(r, 0))) + "/s"
	}
	return fmt.Sprintf("%.1f/s", r)
}

// Complete marks the current operation as completed
func (t *ConsoleTracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.currentOperation == nil {
		return
	}
	d := t.clock().Sub(t.currentOperation.StartTime).Round(time.Millisecond)
	t.endLine()
	fmt.Fprintf(t.out, "Completed: %s (took %v)\n", t.currentOperation.Name, d)
	t.currentOperation.Status = StatusCompleted
	t.currentOperation = nil
}

// Error marks the current operation as failed
func (t *ConsoleTracker) Error(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.currentOperation == nil {
		return
	}
	t.endLine()
	fmt.Fprintf(t.out, "Error: %s - %v\n", t.currentOperation.Name, err)
	t.currentOperation.Status = StatusFailed
	t.currentOperation.Err = err
	t.currentOperation = nil
}

func (t *ConsoleTracker) endLine() {
	if t.interactive && !t.lastPrint.IsZero() {
		fmt.Fprintln(t.out)
	}
}

// Nop is a Tracker that does nothing.
type Nop struct{}

func (Nop) Start(operation string) *Operation { return newOperation(operation, time.Now()) }

func (Nop) Update(current, total int64) {}

func (Nop) Complete() {}

func (Nop) Error(err error) {}
