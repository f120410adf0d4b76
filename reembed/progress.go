package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker writes periodic progress lines for a backfill pass,
// typically to os.Stderr. Safe for concurrent use.
type ProgressTracker struct {
	writer   io.Writer
	total    int
	interval int

	mu       sync.Mutex
	current  int
	reported int
	began    time.Time
	running  bool
}

// NewProgressTracker creates a tracker over total entries that reports
// every interval entries processed.
func NewProgressTracker(writer io.Writer, total, interval int) *ProgressTracker {
	return &ProgressTracker{
		writer:   writer,
		total:    total,
		interval: interval,
	}
}

// Start resets the counters and begins timing. Updates before Start are
// ignored.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.began = time.Now()
	p.running = true
	p.current = 0
	p.reported = 0
}

// Update sets the number of entries processed so far.
func (p *ProgressTracker) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.advance(current)
}

// Increment adds delta to the processed count.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.advance(p.current + delta)
}

// Finish forces a final report at the full total and terminates the
// progress line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.current = p.total
	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time since Start.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return 0
	}
	return time.Since(p.began)
}

// advance clamps the count to the total and reports when a full
// interval has passed since the last report. Caller holds mu.
func (p *ProgressTracker) advance(current int) {
	if current > p.total {
		current = p.total
	}
	p.current = current

	if p.current-p.reported >= p.interval {
		p.report()
		p.reported = p.current
	}
}

// report rewrites the progress line in place. Caller holds mu.
func (p *ProgressTracker) report() {
	elapsed := time.Since(p.began)
	rate := float64(p.current) / elapsed.Seconds()

	pct := 0.0
	if p.total > 0 {
		pct = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rEmbedded %d/%d entries (%.1f%%) at %.1f/s",
		p.current, p.total, pct, rate)
}
