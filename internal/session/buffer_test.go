package session

import (
	"testing"
	"time"

	"github.com/your-org/proctor/internal/models"
)

func TestNextFrameIndexMonotonic(t *testing.T) {
	buf := NewBuffer(30, 30, 15, 5*time.Second)
	for i := 1; i <= 5; i++ {
		if got := buf.NextFrameIndex(); got != i {
			t.Errorf("frame %d: expected index %d, got %d", i, i, got)
		}
	}
}

func TestAlertRingBoundedByCapacity(t *testing.T) {
	buf := NewBuffer(30, 30, 3, 5*time.Second)
	now := time.Now()
	for i := 0; i < 10; i++ {
		buf.AddAlert(models.AlertGazeOffScreen, now)
	}
	if !buf.ShouldTrigger(models.AlertGazeOffScreen, 3, time.Second, now) {
		t.Error("expected the ring to still hold at least 3 recent events after bounding")
	}
	if buf.ShouldTrigger(models.AlertGazeOffScreen, 4, time.Second, now) {
		t.Error("expected the ring to hold no more than its capacity of 3 events")
	}
}

func TestClearOldAlertsDropsExpiredEvents(t *testing.T) {
	buf := NewBuffer(30, 30, 15, 1*time.Second)
	base := time.Now()

	buf.AddAlert(models.AlertGazeOffScreen, base)
	buf.ClearOldAlerts(base.Add(2 * time.Second))

	if !buf.AlertRingEmpty() {
		t.Error("expected alerts older than alertMaxAge to be purged")
	}
}

func TestShouldTriggerRequiresCountWithinWindow(t *testing.T) {
	buf := NewBuffer(30, 30, 15, 5*time.Second)
	base := time.Now()

	buf.AddAlert(models.AlertGazeOffScreen, base)
	buf.AddAlert(models.AlertGazeOffScreen, base.Add(200*time.Millisecond))

	if buf.ShouldTrigger(models.AlertGazeOffScreen, 3, time.Second, base.Add(200*time.Millisecond)) {
		t.Error("expected 2 events to be insufficient for a required=3 trigger")
	}

	buf.AddAlert(models.AlertGazeOffScreen, base.Add(400*time.Millisecond))
	if !buf.ShouldTrigger(models.AlertGazeOffScreen, 3, time.Second, base.Add(400*time.Millisecond)) {
		t.Error("expected 3 events within the window to satisfy required=3")
	}
}

func TestShouldTriggerIgnoresEventsOutsideWindow(t *testing.T) {
	buf := NewBuffer(30, 30, 15, 5*time.Second)
	base := time.Now()

	buf.AddAlert(models.AlertLookingDown, base)
	buf.AddAlert(models.AlertLookingDown, base.Add(2*time.Second))
	buf.AddAlert(models.AlertLookingDown, base.Add(2100*time.Millisecond))

	if buf.ShouldTrigger(models.AlertLookingDown, 3, 1500*time.Millisecond, base.Add(2100*time.Millisecond)) {
		t.Error("expected the first, stale event to fall outside a 1.5s window and trigger to fail")
	}
}

func TestAvgFPSWithNoSamples(t *testing.T) {
	buf := NewBuffer(30, 30, 15, 5*time.Second)
	instant, avg := buf.AvgFPS()
	if instant != 0 || avg != 0 {
		t.Errorf("expected (0,0) before any frame arrives, got (%f,%f)", instant, avg)
	}
}

func TestAvgFPSTracksHistory(t *testing.T) {
	buf := NewBuffer(30, 30, 15, 5*time.Second)
	now := time.Now()
	buf.UpdateFPS(now)
	buf.UpdateFPS(now.Add(100 * time.Millisecond))
	buf.UpdateFPS(now.Add(200 * time.Millisecond))

	instant, avg := buf.AvgFPS()
	if instant <= 0 || avg <= 0 {
		t.Errorf("expected positive fps readings, got instant=%f avg=%f", instant, avg)
	}
}

func TestCachedHeavyDetectionsInitiallyEmpty(t *testing.T) {
	buf := NewBuffer(30, 30, 15, 5*time.Second)
	_, frame := buf.CachedHeavyDetections()
	if frame != -1 {
		t.Errorf("expected lastHeavyFrame == -1 before any detection, got %d", frame)
	}
}

func TestSetAndGetCachedHeavyDetections(t *testing.T) {
	buf := NewBuffer(30, 30, 15, 5*time.Second)
	objects := models.Objects{Items: []models.Object{{Label: "laptop"}}}
	buf.SetHeavyDetections(objects, 10)

	cached, frame := buf.CachedHeavyDetections()
	if frame != 10 || len(cached.Items) != 1 || cached.Items[0].Label != "laptop" {
		t.Errorf("expected cached detections to round-trip, got %+v frame=%d", cached, frame)
	}
}

func TestSessionIsolationAcrossBuffers(t *testing.T) {
	bufA := NewBuffer(30, 30, 15, 5*time.Second)
	bufB := NewBuffer(30, 30, 15, 5*time.Second)

	now := time.Now()
	bufA.AddAlert(models.AlertGazeOffScreen, now)
	bufA.AddAlert(models.AlertGazeOffScreen, now)
	bufA.AddAlert(models.AlertGazeOffScreen, now)

	if bufB.ShouldTrigger(models.AlertGazeOffScreen, 3, time.Second, now) {
		t.Error("expected session B's buffer to be unaffected by session A's alert history")
	}
}
