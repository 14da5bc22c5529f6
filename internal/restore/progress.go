package restore

import (
	"sort"
	"sync"
	"time"
)

// Phase is the current phase of a restore run.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseRestoring Phase = "restoring"
	PhaseComplete  Phase = "complete"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// maxRecentEvents caps the rolling log kept by Tracker.
const maxRecentEvents = 20

// FileEvent records a finished entry for the recent activity log.
type FileEvent struct {
	Path   string `json:"path"`
	Status string `json:"status"` // "restored", "skipped", "failed"
	Error  string `json:"error,omitempty"`
	Size   int64  `json:"size,omitempty"`
}

// Progress is a snapshot of a restore run, safe for JSON serialization.
type Progress struct {
	Phase          Phase       `json:"phase"`
	TotalFiles     int         `json:"total_files"`
	RestoredFiles  int         `json:"restored_files"`
	SkippedFiles   int         `json:"skipped_files"`
	FailedFiles    int         `json:"failed_files"`
	BytesCopied    int64       `json:"bytes_copied"`
	Percent        float64     `json:"percent"`
	CurrentFiles   []string    `json:"current_files,omitempty"`
	RecentEvents   []FileEvent `json:"recent_events,omitempty"`
	BytesPerSecond int64       `json:"bytes_per_second"`
	StartTime      time.Time   `json:"start_time"`
	Elapsed        string      `json:"elapsed"`
}

// Done reports whether the run has finished, successfully or not.
func (p Progress) Done() bool {
	return p.Phase == PhaseComplete || p.Phase == PhaseFailed || p.Phase == PhaseCancelled
}

// Tracker accumulates progress from restore workers. Readers call Wait to
// block until the next update.
type Tracker struct {
	mu sync.Mutex

	phase         Phase
	totalFiles    int
	restoredFiles int
	skippedFiles  int
	failedFiles   int
	bytesCopied   int64
	startTime     time.Time

	// Destinations currently being copied.
	current map[string]struct{}

	recentEvents []FileEvent

	// Close-and-replace: every update closes notify and installs a new one.
	notify chan struct{}
}

// NewTracker returns a tracker in the pending phase.
func NewTracker() *Tracker {
	return &Tracker{
		phase:     PhasePending,
		startTime: time.Now(),
		current:   make(map[string]struct{}),
		notify:    make(chan struct{}),
	}
}

// Snapshot returns a copy of the current progress state.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pct float64
	if t.totalFiles > 0 {
		pct = float64(t.restoredFiles+t.skippedFiles+t.failedFiles) / float64(t.totalFiles) * 100
	} else if t.phase == PhaseComplete {
		pct = 100
	}

	current := make([]string, 0, len(t.current))
	for p := range t.current {
		current = append(current, p)
	}
	sort.Strings(current)

	recent := make([]FileEvent, len(t.recentEvents))
	copy(recent, t.recentEvents)

	elapsed := time.Since(t.startTime)
	var bps int64
	if elapsed > time.Second && t.bytesCopied > 0 {
		bps = int64(float64(t.bytesCopied) / elapsed.Seconds())
	}

	return Progress{
		Phase:          t.phase,
		TotalFiles:     t.totalFiles,
		RestoredFiles:  t.restoredFiles,
		SkippedFiles:   t.skippedFiles,
		FailedFiles:    t.failedFiles,
		BytesCopied:    t.bytesCopied,
		Percent:        pct,
		CurrentFiles:   current,
		RecentEvents:   recent,
		BytesPerSecond: bps,
		StartTime:      t.startTime,
		Elapsed:        elapsed.Truncate(time.Second).String(),
	}
}

// Wait returns a channel that is closed on the next update.
func (t *Tracker) Wait() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.notify
}

// signal must be called with t.mu held.
func (t *Tracker) signal() {
	close(t.notify)
	t.notify = make(chan struct{})
}

func (t *Tracker) addRecentEvent(ev FileEvent) {
	t.recentEvents = append([]FileEvent{ev}, t.recentEvents...)
	if len(t.recentEvents) > maxRecentEvents {
		t.recentEvents = t.recentEvents[:maxRecentEvents]
	}
}

func (t *Tracker) start(totalFiles int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = PhaseRestoring
	t.totalFiles = totalFiles
	t.startTime = time.Now()
	t.signal()
}

func (t *Tracker) setPhase(phase Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
	t.current = make(map[string]struct{})
	t.signal()
}

func (t *Tracker) fileStarted(dest string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current[dest] = struct{}{}
	t.signal()
}

func (t *Tracker) fileRestored(dest string, n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.current, dest)
	t.restoredFiles++
	t.bytesCopied += n
	t.addRecentEvent(FileEvent{Path: dest, Status: "restored", Size: n})
	t.signal()
}

func (t *Tracker) fileSkipped(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skippedFiles++
	t.addRecentEvent(FileEvent{Path: path, Status: "skipped"})
	t.signal()
}

func (t *Tracker) fileFailed(path string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.current, path)
	t.failedFiles++
	t.addRecentEvent(FileEvent{Path: path, Status: "failed", Error: err.Error()})
	t.signal()
}
