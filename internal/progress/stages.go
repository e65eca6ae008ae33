package progress

import (
	"log/slog"
	"sync"
	"time"
)

// Stage names one step of an extraction run.
type Stage string

const (
	StageValidate Stage = "validate"
	StageClone    Stage = "clone"
	StageScan     Stage = "scan"
	StagePrepare  Stage = "prepare output"
	StageCopy     Stage = "copy"
	StageReport   Stage = "report"
	StageIndex    Stage = "index"
)

// StageStatus is the state of a stage.
type StageStatus string

const (
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
	StageSkipped    StageStatus = "skipped"
)

// StageRecord is the history of one stage.
type StageRecord struct {
	Stage    Stage
	Status   StageStatus
	Started  time.Time
	Finished time.Time
	Err      error
}

// Duration returns how long the stage ran, or 0 while it is running.
func (r StageRecord) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// StageTracker records the stages of a run and logs each transition.
type StageTracker struct {
	mu      sync.Mutex
	records []StageRecord
	logger  *slog.Logger

	now func() time.Time
}

// NewStageTracker creates a tracker logging to logger. A nil logger
// discards.
func NewStageTracker(logger *slog.Logger) *StageTracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StageTracker{logger: logger}
}

func (t *StageTracker) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Begin marks stage as started.
func (t *StageTracker) Begin(stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, StageRecord{Stage: stage, Status: StageInProgress, Started: t.clock()})
	t.logger.Debug("stage started", "stage", string(stage))
}

// Finish ends the most recent run of stage. A nil err completes it.
func (t *StageTracker) Finish(stage Stage, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.records) - 1; i >= 0; i-- {
		r := &t.records[i]
		if r.Stage != stage || r.Status != StageInProgress {
			continue
		}
		r.Finished = t.clock()
		if err != nil {
			r.Status = StageFailed
			r.Err = err
			t.logger.Debug("stage failed", "stage", string(stage), "duration", r.Duration(), "error", err)
			return
		}
		r.Status = StageCompleted
		t.logger.Debug("stage completed", "stage", string(stage), "duration", r.Duration())
		return
	}
}

// Skip records that stage was not run.
func (t *StageTracker) Skip(stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	t.records = append(t.records, StageRecord{Stage: stage, Status: StageSkipped, Started: now, Finished: now})
	t.logger.Debug("stage skipped", "stage", string(stage))
}

// Current returns the stage in progress, if any.
func (t *StageTracker) Current() (Stage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.records) - 1; i >= 0; i-- {
		if t.records[i].Status == StageInProgress {
			return t.records[i].Stage, true
		}
	}
	return "", false
}

// Records returns a copy of the stage history in order.
func (t *StageTracker) Records() []StageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]StageRecord(nil), t.records...)
}
