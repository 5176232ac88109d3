// Package pipeline holds the single explicitly-owned controller that
// replaces package-level mutable registries (an upload sessionStore, a
// processor DefaultRegistry) with one value passed into every constructor
// that needs it.
package pipeline

import (
	"sync"
	"time"
)

// JobTicket is the in-memory handle to an active C2 or C3 task; its cancel
// state is guarded by the ticket's own mutex.
type JobTicket struct {
	ArtifactID string
	SpoolPath  string
	OutputPath string

	mu         sync.Mutex
	cancel     func() // terminates the subprocess / download loop, if set
	cancelled  bool
}

// Cancel marks the ticket cancelled and invokes the registered terminator,
// if any. Safe to call more than once.
func (t *JobTicket) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	t.cancelled = true
	if t.cancel != nil {
		t.cancel()
	}
}

// Cancelled reports whether Cancel has been called for this ticket.
func (t *JobTicket) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// SetCanceller installs the function invoked on Cancel (subprocess
// termination, download-loop abort). If the ticket is already cancelled,
// the function is invoked immediately.
func (t *JobTicket) SetCanceller(fn func()) {
	t.mu.Lock()
	already := t.cancelled
	t.cancel = fn
	t.mu.Unlock()
	if already && fn != nil {
		fn()
	}
}

type progressEntry struct {
	lastPct int
	lastTS  time.Time
}

type speedSample struct {
	bytesSince time.Time
	bytes      int64
	mbps       float64
}

const shardCount = 16

type shard struct {
	mu       sync.Mutex
	jobs     map[string]*JobTicket
	progress map[string]*progressEntry
	speed    map[string]*speedSample
}

// Controller is the single pipeline controller: four logical registries
// (job registry, progress-throttle cache, speed-tracking cache, and the
// cancel-flag set folded into JobTicket.Cancelled) behind sharded mutexes,
// owned by the process root and passed explicitly into
// internal/transcode and internal/ingest constructors.
type Controller struct {
	shards [shardCount]*shard
}

// NewController constructs an empty controller.
func NewController() *Controller {
	c := &Controller{}
	for i := range c.shards {
		c.shards[i] = &shard{
			jobs:     make(map[string]*JobTicket),
			progress: make(map[string]*progressEntry),
			speed:    make(map[string]*speedSample),
		}
	}
	return c
}

func (c *Controller) shardFor(artifactID string) *shard {
	var h uint32
	for i := 0; i < len(artifactID); i++ {
		h = h*31 + uint32(artifactID[i])
	}
	return c.shards[int(h)%shardCount]
}

// Register creates and stores a JobTicket for artifactID. Registering an
// artifact_id that already has a ticket replaces it (the caller is
// responsible for not double-registering a live job).
func (c *Controller) Register(artifactID, spoolPath, outputPath string) *JobTicket {
	s := c.shardFor(artifactID)
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &JobTicket{ArtifactID: artifactID, SpoolPath: spoolPath, OutputPath: outputPath}
	s.jobs[artifactID] = t
	return t
}

// Lookup returns the active ticket for artifactID, if any.
func (c *Controller) Lookup(artifactID string) (*JobTicket, bool) {
	s := c.shardFor(artifactID)
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.jobs[artifactID]
	return t, ok
}

// Unregister removes the ticket for artifactID. Call once the job has
// reached a terminal state and its temp files are gone.
func (c *Controller) Unregister(artifactID string) {
	s := c.shardFor(artifactID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, artifactID)
}

// Cancel sets the cancel flag for artifactID and, if a subprocess or
// download loop is registered, asks it to terminate. Returns whether a job
// was found.
func (c *Controller) Cancel(artifactID string) bool {
	t, ok := c.Lookup(artifactID)
	if !ok {
		return false
	}
	t.Cancel()
	return true
}

// ShouldCommitProgress decides whether a progress update should be written
// through to the catalog: drop updates within 3 points and 1s of the last
// committed value, but never drop a status-changing update.
// statusChanging bypasses the throttle.
func (c *Controller) ShouldCommitProgress(artifactID string, pct int, statusChanging bool) bool {
	s := c.shardFor(artifactID)
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.progress[artifactID]
	now := time.Now()
	if statusChanging || !ok {
		s.progress[artifactID] = &progressEntry{lastPct: pct, lastTS: now}
		return true
	}

	deltaPct := pct - prev.lastPct
	if deltaPct < 0 {
		deltaPct = -deltaPct
	}
	if deltaPct < 3 && now.Sub(prev.lastTS) < time.Second {
		return false
	}

	s.progress[artifactID] = &progressEntry{lastPct: pct, lastTS: now}
	return true
}

// RecordBytes folds a byte count observed over the given duration into an
// artifact's rolling speed estimate (bytes observed over a window of at
// least 0.5s).
func (c *Controller) RecordBytes(artifactID string, bytes int64, window time.Duration) {
	if window <= 0 {
		return
	}
	s := c.shardFor(artifactID)
	s.mu.Lock()
	defer s.mu.Unlock()

	mbps := (float64(bytes) / (1024 * 1024)) / window.Seconds()
	s.speed[artifactID] = &speedSample{bytesSince: time.Now(), bytes: bytes, mbps: mbps}
}

// ResetSpeed zeroes the speed estimate for artifactID (e.g. on cancel).
func (c *Controller) ResetSpeed(artifactID string) {
	s := c.shardFor(artifactID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed[artifactID] = &speedSample{bytesSince: time.Now()}
}

// Speed is the read-only query clients use to render throughput without
// touching the catalog, unifying what would otherwise be two separate
// progress-reporting surfaces.
func (c *Controller) Speed(artifactID string) float64 {
	s := c.shardFor(artifactID)
	s.mu.Lock()
	defer s.mu.Unlock()
	sample, ok := s.speed[artifactID]
	if !ok {
		return 0
	}
	return sample.mbps
}

// BatchSpeed reports the current speed estimate for several artifacts at
// once.
func (c *Controller) BatchSpeed(artifactIDs []string) map[string]float64 {
	out := make(map[string]float64, len(artifactIDs))
	for _, id := range artifactIDs {
		out[id] = c.Speed(id)
	}
	return out
}
