package extract

import (
	"time"
)

// Progress is the copy ledger for one extraction run. The sink passed to
// ExtractFiles receives the live ledger; callers must not retain it across
// calls if they need a stable view.
type Progress struct {
	FilesProcessed int
	TotalFiles     int
	BytesProcessed int64
	TotalBytes     int64
	CurrentFile    string
	StartTime      time.Time
	Errors         []string

	now func() time.Time
}

// NewProgress starts a ledger for totalFiles files totalling totalBytes.
func NewProgress(totalFiles int, totalBytes int64) *Progress {
	return &Progress{
		TotalFiles: totalFiles,
		TotalBytes: totalBytes,
		StartTime:  time.Now(),
		Errors:     []string{},
		now:        time.Now,
	}
}

// Update records a completed file.
func (p *Progress) Update(file string, bytes int64) {
	p.CurrentFile = file
	p.FilesProcessed++
	p.BytesProcessed += bytes
}

// AddError appends a non-fatal error message.
func (p *Progress) AddError(msg string) {
	p.Errors = append(p.Errors, msg)
}

// HasErrors reports whether any file failed.
func (p *Progress) HasErrors() bool {
	return len(p.Errors) > 0
}

// Percentage is the share of files processed, in [0, 100]. An empty batch
// is reported as complete.
func (p *Progress) Percentage() float64 {
	if p.TotalFiles == 0 {
		return 100
	}
	return float64(p.FilesProcessed) / float64(p.TotalFiles) * 100
}

// Elapsed returns the time since the ledger was started.
func (p *Progress) Elapsed() time.Duration {
	return p.clock().Sub(p.StartTime)
}

// EstimatedRemaining extrapolates from the byte rate so far. It returns
// false until at least one byte has been processed.
func (p *Progress) EstimatedRemaining() (time.Duration, bool) {
	if p.BytesProcessed == 0 {
		return 0, false
	}
	elapsed := p.Elapsed().Seconds()
	if elapsed <= 0 {
		return 0, false
	}
	rate := float64(p.BytesProcessed) / elapsed
	remaining := p.TotalBytes - p.BytesProcessed
	if remaining <= 0 {
		return 0, true
	}
	return time.Duration(float64(remaining) / rate * float64(time.Second)), true
}

// Snapshot returns a copy of the ledger that is safe to keep.
func (p *Progress) Snapshot() Progress {
	cp := *p
	cp.Errors = append([]string(nil), p.Errors...)
	return cp
}

func (p *Progress) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}
