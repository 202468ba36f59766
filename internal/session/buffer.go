// Package session holds the per-client temporal state (Buffer) and the
// alert/behavior classifier that turns a frame's derived signals into
// smoothed, deduplicated alerts.
package session

import (
	"sync"
	"time"

	"github.com/your-org/proctor/internal/models"
)

// Buffer is the per-session ring-bounded temporal state described by the
// data model: frame counter, FPS history, signal history, and a
// time-stamped recent-alert ring. Exactly one Buffer exists per session key
// for the lifetime of its connection; it is never shared across sessions.
type Buffer struct {
	mu sync.Mutex

	frameCount int

	fpsHistory    []float64
	fpsHistoryCap int
	lastFrameAt   time.Time

	signalHistory    []models.Signals
	signalHistoryCap int

	alertHistory []models.AlertEvent
	alertRingCap int
	alertMaxAge  time.Duration

	lastHeavyDetections models.Objects
	lastHeavyFrame      int
}

// NewBuffer creates an empty session buffer with the given ring bounds.
func NewBuffer(fpsHistoryCap, signalHistoryCap, alertRingCap int, alertMaxAge time.Duration) *Buffer {
	return &Buffer{
		fpsHistoryCap:    fpsHistoryCap,
		signalHistoryCap: signalHistoryCap,
		alertRingCap:     alertRingCap,
		alertMaxAge:      alertMaxAge,
		lastHeavyFrame:   -1,
	}
}

// NextFrameIndex increments and returns the new frame_count. Called exactly
// once per inbound frame, whether processed or skipped.
func (b *Buffer) NextFrameIndex() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frameCount++
	return b.frameCount
}

// FrameCount returns the current frame_count without incrementing it.
func (b *Buffer) FrameCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frameCount
}

// AddSignals appends a processed frame's derived signals, bounding history
// to signalHistoryCap most recent samples.
func (b *Buffer) AddSignals(s models.Signals) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signalHistory = append(b.signalHistory, s)
	if over := len(b.signalHistory) - b.signalHistoryCap; over > 0 {
		b.signalHistory = b.signalHistory[over:]
	}
}

// AddAlert appends a candidate alert to the history.
func (b *Buffer) AddAlert(kind models.AlertKind, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alertHistory = append(b.alertHistory, models.AlertEvent{Kind: kind, At: now})
	if over := len(b.alertHistory) - b.alertRingCap; over > 0 {
		b.alertHistory = b.alertHistory[over:]
	}
}

// ClearOldAlerts drops events older than the configured max age. Called at
// the entry of every processed frame.
func (b *Buffer) ClearOldAlerts(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearOldAlertsLocked(now)
}

func (b *Buffer) clearOldAlertsLocked(now time.Time) {
	kept := b.alertHistory[:0]
	for _, e := range b.alertHistory {
		if now.Sub(e.At) <= b.alertMaxAge {
			kept = append(kept, e)
		}
	}
	b.alertHistory = kept
}

// AlertRingEmpty reports whether the (already-purged) alert ring holds no
// events — the orchestrator's skip decision short-circuits once any alert
// kind is active so smoothing windows are not starved by skipped frames.
func (b *Buffer) AlertRingEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.alertHistory) == 0
}

// ShouldTrigger reports whether the alert ring contains at least
// requiredCount events of kind with age <= window, as of now.
func (b *Buffer) ShouldTrigger(kind models.AlertKind, requiredCount int, window time.Duration, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0
	for _, e := range b.alertHistory {
		if e.Kind == kind && now.Sub(e.At) <= window {
			count++
		}
	}
	return count >= requiredCount
}

// UpdateFPS records the instantaneous frame rate observed between this call
// and the previous one, bounding history to fpsHistoryCap samples.
func (b *Buffer) UpdateFPS(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.lastFrameAt.IsZero() {
		dt := now.Sub(b.lastFrameAt).Seconds()
		if dt > 0 {
			instant := 1 / dt
			b.fpsHistory = append(b.fpsHistory, instant)
			if over := len(b.fpsHistory) - b.fpsHistoryCap; over > 0 {
				b.fpsHistory = b.fpsHistory[over:]
			}
		}
	}
	b.lastFrameAt = now
}

// AvgFPS returns the moving average of recorded instantaneous frame rates,
// and the most recent instantaneous sample (0 if none yet).
func (b *Buffer) AvgFPS() (instant, avg float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.fpsHistory) == 0 {
		return 0, 0
	}
	instant = b.fpsHistory[len(b.fpsHistory)-1]
	var sum float64
	for _, f := range b.fpsHistory {
		sum += f
	}
	avg = sum / float64(len(b.fpsHistory))
	return instant, avg
}

// CachedHeavyDetections returns the most recently cached object-detector
// result together with the frame index it was produced at (-1 if never
// run).
func (b *Buffer) CachedHeavyDetections() (models.Objects, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastHeavyDetections, b.lastHeavyFrame
}

// SetHeavyDetections stores a fresh object-detector result as the cache for
// subsequent strided frames.
func (b *Buffer) SetHeavyDetections(objects models.Objects, frameIndex int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastHeavyDetections = objects
	b.lastHeavyFrame = frameIndex
}
