// Package pipeline wires the detector adapters, geometric analyzers, and
// alert classifier into the per-frame orchestrator described as the core
// of the engine: skip decision, downscale, fixed detector order, object
// detector striding, signal derivation, classification, visualization.
package pipeline

import (
	"fmt"
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/your-org/proctor/internal/analyze"
	"github.com/your-org/proctor/internal/config"
	"github.com/your-org/proctor/internal/eventbus"
	"github.com/your-org/proctor/internal/frameio"
	"github.com/your-org/proctor/internal/models"
	"github.com/your-org/proctor/internal/observability"
	"github.com/your-org/proctor/internal/session"
	"github.com/your-org/proctor/internal/vision"
)

// Orchestrator is the per-frame coordinator. It owns no per-session state
// directly — that lives in each session.Buffer — but holds the process-wide
// ModelRegistry and the bounds every new Buffer is created with.
type Orchestrator struct {
	registry *vision.ModelRegistry
	visCfg   config.VisionConfig
	sessCfg  config.SessionConfig
	alertAge time.Duration

	publisher *eventbus.Publisher
	pool      *WorkerPool

	mu       sync.Mutex
	sessions map[string]*session.Buffer
}

// NewOrchestrator builds an orchestrator around an already-initialized
// model registry. publisher may be nil — alert publication is then a no-op.
// CPU-bound detector work runs on a bounded WorkerPool sized by
// visCfg.WorkerCount rather than inline in the caller's goroutine.
func NewOrchestrator(registry *vision.ModelRegistry, visCfg config.VisionConfig, sessCfg config.SessionConfig, publisher *eventbus.Publisher) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		visCfg:    visCfg,
		sessCfg:   sessCfg,
		alertAge:  time.Duration(sessCfg.AlertMaxAgeSec) * time.Second,
		publisher: publisher,
		pool:      NewWorkerPool(visCfg.WorkerCount),
		sessions:  make(map[string]*session.Buffer),
	}
}

// Close shuts down the worker pool, waiting for any in-flight frame to
// finish. Call once, after the transport layer has stopped accepting
// connections.
func (o *Orchestrator) Close() {
	o.pool.Close()
}

// CreateSession allocates a fresh buffer for a newly connected session key.
// A reconnect under a new key always gets a clean buffer — no alert history
// carries over.
func (o *Orchestrator) CreateSession(sessionKey string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessions[sessionKey] = session.NewBuffer(o.sessCfg.FPSHistory, o.sessCfg.SignalHistory, o.sessCfg.AlertRingSize, o.alertAge)
	observability.ActiveSessions.Inc()
}

// DropSession disposes of a session's buffer on disconnect.
func (o *Orchestrator) DropSession(sessionKey string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.sessions[sessionKey]; ok {
		delete(o.sessions, sessionKey)
		observability.ActiveSessions.Dec()
	}
}

func (o *Orchestrator) bufferFor(sessionKey string) *session.Buffer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions[sessionKey]
}

// Process runs one inbound frame through the full pipeline and returns its
// Verdict. original is a BGR Mat owned by the caller — Process never
// closes it. sessionKey must have been registered via CreateSession. The
// actual detector work is dispatched onto the shared WorkerPool so that
// many concurrent sessions never run more than visCfg.WorkerCount frames'
// worth of inference at once; Process itself blocks until that work
// completes, so per-session frame ordering is unaffected.
func (o *Orchestrator) Process(sessionKey string, original gocv.Mat, force bool) (models.Verdict, error) {
	return o.pool.Submit(func() (models.Verdict, error) {
		return o.process(sessionKey, original, force)
	})
}

// process is the sequential per-frame pipeline body, always run on a
// WorkerPool goroutine.
func (o *Orchestrator) process(sessionKey string, original gocv.Mat, force bool) (models.Verdict, error) {
	start := time.Now()
	now := start

	buf := o.bufferFor(sessionKey)
	if buf == nil {
		return models.Verdict{}, fmt.Errorf("process: unknown session %q", sessionKey)
	}

	buf.ClearOldAlerts(now)
	frameIdx := buf.NextFrameIndex()

	skip := frameIdx%o.visCfg.FrameSkipModulo != 0 && !force && buf.AlertRingEmpty()
	if skip {
		buf.UpdateFPS(now)
		instant, avg := buf.AvgFPS()
		observability.FramesSkipped.WithLabelValues(sessionKey).Inc()
		return skippedVerdict(frameIdx, instant, avg, now), nil
	}

	observability.FramesProcessed.WithLabelValues(sessionKey).Inc()

	origW, origH := original.Cols(), original.Rows()

	downscaled := frameio.ResizeToWidth(original, o.visCfg.DownscaleWidth)
	defer downscaled.Close()
	downscaledRGB := frameio.ToRGB(downscaled)
	defer downscaledRGB.Close()
	dsW, dsH := downscaled.Cols(), downscaled.Rows()

	faces := o.detectFaces(downscaledRGB, dsW, dsH)

	var mesh models.FaceMesh
	meshAvailable := o.registry.Mesh.Availability() == models.Available && faces.Count > 0
	if meshAvailable {
		mesh = o.detectMesh(downscaledRGB, faces, dsW, dsH)
	}

	var pose models.Pose
	poseAvailable := o.registry.Pose.Availability() == models.Available
	if poseAvailable {
		pose = o.detectPose(downscaledRGB)
	}

	objects, yoloCached := o.runObjectDetector(original, buf, frameIdx, origW, origH)

	sig := o.deriveSignals(faces, &mesh, meshAvailable, &pose, poseAvailable, objects, origW, origH, dsW, dsH)
	buf.AddSignals(sig)

	classified := session.Classify(buf, sig, now)
	for _, a := range classified.Active {
		observability.AlertsFired.WithLabelValues(string(a.Kind)).Inc()
		o.publisher.PublishAlert(sessionKey, a.Kind, now)
	}

	buf.UpdateFPS(now)
	instant, avg := buf.AvgFPS()

	viz, err := renderVisualization(original, faces, mesh, meshAvailable, pose, poseAvailable, objects, classified, instant, dsW, dsH)
	if err != nil {
		viz = ""
	}

	elapsed := time.Since(start)

	return models.Verdict{
		Alert:           classified.AlertString,
		Confidence:      round2(classified.Confidence),
		VizJPEGBase64:   viz,
		BehaviorStatus:  classified.BehaviorStatus,
		DevicesDetected: classified.Devices,
		Details: models.Details{
			NumFaces:              sig.FaceCount,
			GazeHorizontal:        sig.GazeHorizontal,
			GazeVertical:          sig.GazeVertical,
			EAR:                   sig.EAR,
			HeadPitch:             sig.HeadPitch,
			HeadYaw:               sig.HeadYaw,
			HeadRoll:              sig.HeadRoll,
			HandFaceDistanceLeft:  sig.HandFaceDistanceLeft,
			HandFaceDistanceRight: sig.HandFaceDistanceRight,
			NoseShoulderDiff:      sig.NoseShoulderDiff,
			ProcessingTimeMs:      float64(elapsed.Microseconds()) / 1000.0,
			FPS:                   instant,
			AvgFPS:                avg,
			FrameCount:            frameIdx,
			YOLOCached:            yoloCached,
			Skipped:               false,
		},
		Timestamp: float64(now.UnixNano()) / 1e9,
	}, nil
}

func skippedVerdict(frameIdx int, instant, avg float64, now time.Time) models.Verdict {
	return models.Verdict{
		Alert:           "none",
		Confidence:      1.0,
		VizJPEGBase64:   "",
		BehaviorStatus:  "Focused on screen",
		DevicesDetected: nil,
		Details: models.Details{
			FPS:        instant,
			AvgFPS:     avg,
			FrameCount: frameIdx,
			Skipped:    true,
		},
		Timestamp: float64(now.UnixNano()) / 1e9,
	}
}

// detectFaces preprocesses the downscaled RGB frame to the face detector's
// fixed input shape and runs it, attributing the call to metrics
// regardless of whether the model is actually loaded.
func (o *Orchestrator) detectFaces(downscaledRGB gocv.Mat, dsW, dsH int) models.FaceCount {
	inW, inH := o.registry.Face.InputSize()
	resized := frameio.ResizeTo(downscaledRGB, inW, inH)
	defer resized.Close()
	chw := frameio.ToCHWFloat32(resized, [3]float32{127.5, 127.5, 127.5}, [3]float32{128, 128, 128})

	observability.DetectorInvocations.WithLabelValues("face").Inc()
	start := time.Now()
	result, err := o.registry.Face.Detect(chw, dsW, dsH)
	observability.InferenceDuration.WithLabelValues("face").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.DetectorFailures.WithLabelValues("face").Inc()
		return models.FaceCount{}
	}
	return result
}

// detectMesh crops the downscaled frame around the highest-confidence face
// bounding box and runs the dense landmark regressor on that crop.
func (o *Orchestrator) detectMesh(downscaledRGB gocv.Mat, faces models.FaceCount, dsW, dsH int) models.FaceMesh {
	if len(faces.BBoxes) == 0 {
		return models.FaceMesh{}
	}
	box := faces.BBoxes[0]
	x0, y0 := clampInt(int(box[0]), 0, dsW-1), clampInt(int(box[1]), 0, dsH-1)
	x1, y1 := clampInt(int(box[2]), x0+1, dsW), clampInt(int(box[3]), y0+1, dsH)

	region := downscaledRGB.Region(image.Rect(x0, y0, x1, y1))
	defer region.Close()

	inW, inH := o.registry.Mesh.InputSize()
	resized := frameio.ResizeTo(region, inW, inH)
	defer resized.Close()
	chw := frameio.ToCHWFloat32(resized, [3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})

	observability.DetectorInvocations.WithLabelValues("facemesh").Inc()
	start := time.Now()
	mesh, err := o.registry.Mesh.Detect(chw, float32(x0), float32(y0), float32(x1-x0), float32(y1-y0))
	observability.InferenceDuration.WithLabelValues("facemesh").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.DetectorFailures.WithLabelValues("facemesh").Inc()
		return models.FaceMesh{}
	}
	return mesh
}

func (o *Orchestrator) detectPose(downscaledRGB gocv.Mat) models.Pose {
	inW, inH := o.registry.Pose.InputSize()
	resized := frameio.ResizeTo(downscaledRGB, inW, inH)
	defer resized.Close()
	chw := frameio.ToCHWFloat32(resized, [3]float32{127.5, 127.5, 127.5}, [3]float32{128, 128, 128})

	observability.DetectorInvocations.WithLabelValues("pose").Inc()
	start := time.Now()
	pose, err := o.registry.Pose.Detect(chw)
	observability.InferenceDuration.WithLabelValues("pose").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.DetectorFailures.WithLabelValues("pose").Inc()
		return models.Pose{}
	}
	return pose
}

// runObjectDetector implements the 1-in-10 stride with cache reuse: fresh
// inference on the original-resolution frame every ObjectStrideModulo'th
// frame, the cached result for the following frames while it is still
// fresh, and an empty result once the cache has expired.
func (o *Orchestrator) runObjectDetector(original gocv.Mat, buf *session.Buffer, frameIdx, origW, origH int) (models.Objects, bool) {
	if frameIdx%o.visCfg.ObjectStrideModulo == 0 {
		originalRGB := frameio.ToRGB(original)
		defer originalRGB.Close()

		inW, inH := o.registry.Objects.InputSize()
		resized := frameio.ResizeTo(originalRGB, inW, inH)
		defer resized.Close()
		chw := frameio.ToCHWFloat32(resized, [3]float32{0, 0, 0}, [3]float32{255, 255, 255})

		observability.DetectorInvocations.WithLabelValues("objects").Inc()
		start := time.Now()
		objects, err := o.registry.Objects.Detect(chw, origW, origH)
		observability.InferenceDuration.WithLabelValues("objects").Observe(time.Since(start).Seconds())
		if err != nil {
			observability.DetectorFailures.WithLabelValues("objects").Inc()
			objects = models.Objects{}
		}
		buf.SetHeavyDetections(objects, frameIdx)
		return objects, false
	}

	cached, lastFrame := buf.CachedHeavyDetections()
	if lastFrame >= 0 && frameIdx-lastFrame < o.visCfg.ObjectStrideModulo {
		return cached, true
	}
	return models.Objects{}, false
}

func (o *Orchestrator) deriveSignals(
	faces models.FaceCount,
	mesh *models.FaceMesh,
	meshAvailable bool,
	pose *models.Pose,
	poseAvailable bool,
	objects models.Objects,
	origW, origH, dsW, dsH int,
) models.Signals {
	sig := models.Signals{
		FaceCount: faces.Count,
		Devices:   objects.Items,
	}
	for _, s := range faces.PerFaceScore {
		if float64(s) > sig.MaxFaceScore {
			sig.MaxFaceScore = float64(s)
		}
	}

	if meshAvailable {
		sig.GazeHorizontal, sig.GazeVertical, sig.EAR = analyze.GazeAndEAR(mesh)

		scaleX := float64(origW) / float64(dsW)
		scaleY := float64(origH) / float64(dsH)
		points := analyze.HeadPosePoints(mesh, scaleX, scaleY)
		sig.HeadPitch, sig.HeadYaw, sig.HeadRoll = analyze.HeadPose(points, float64(origW), float64(origH))
	}

	if poseAvailable {
		sig.HandFaceDistanceLeft, sig.HandFaceDistanceRight = analyze.HandFaceDistances(pose)
		sig.NoseShoulderDiff = analyze.NoseShoulderDiff(pose)
	} else {
		sig.HandFaceDistanceLeft, sig.HandFaceDistanceRight = 999, 999
	}

	return sig
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
