// Package fake provides scripted odometry collaborators for demos and tests.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/spatialmath"

	"go.viam.com/odometry"
)

// Estimator is a fake relative-motion estimator. Each processed observation
// advances the pose by Step (or by the supplied guess when one is given);
// FailFor makes the next calls report tracking loss.
type Estimator struct {
	mu        sync.Mutex
	pose      spatialmath.Pose
	prevStamp time.Time
	failFor   int

	// Step is the per-observation motion when no guess is supplied.
	Step r3.Vector

	lastFrame []r3.Vector
	localMap  []r3.Vector
}

// NewEstimator returns a fake estimator that walks along +X.
func NewEstimator() *Estimator {
	return &Estimator{
		pose: spatialmath.NewZeroPose(),
		Step: r3.Vector{X: 0.05},
	}
}

// FailFor makes the next n Process calls report tracking loss.
func (e *Estimator) FailFor(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failFor = n
}

// Process advances the fake trajectory.
func (e *Estimator) Process(obs *odometry.Observation, guess spatialmath.Pose) *odometry.Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	prevStamp := e.prevStamp
	e.prevStamp = obs.Stamp
	if e.failFor > 0 {
		e.failFor--
		return &odometry.Result{}
	}

	step := spatialmath.NewPoseFromPoint(e.Step)
	if guess != nil {
		step = guess
	}
	prev := e.pose
	e.pose = spatialmath.Compose(e.pose, step)

	var vel *odometry.Velocity
	if !prevStamp.IsZero() {
		if dt := obs.Stamp.Sub(prevStamp).Seconds(); dt > 0 {
			delta := spatialmath.Compose(spatialmath.PoseInverse(prev), e.pose)
			vel = &odometry.Velocity{Linear: delta.Point().Mul(1 / dt)}
		}
	}

	at := e.pose.Point()
	e.lastFrame = []r3.Vector{
		{X: 0.5, Y: 0.2}, {X: 0.5, Y: -0.2}, {X: 0.7},
	}
	e.localMap = append(e.localMap, at)

	return &odometry.Result{
		Pose:     e.pose,
		Variance: 0.01,
		Inliers:  50,
		Velocity: vel,
	}
}

// Reset re-anchors the fake at the given pose.
func (e *Estimator) Reset(to spatialmath.Pose) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pose = to
	e.localMap = nil
	e.lastFrame = nil
}

// Pose returns the fake's current pose.
func (e *Estimator) Pose() spatialmath.Pose {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pose
}

// PreviousStamp returns the stamp of the last processed observation.
func (e *Estimator) PreviousStamp() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prevStamp
}

// LocalMap returns the accumulated fake feature map, making the fake a
// frame-to-map estimator.
func (e *Estimator) LocalMap() []r3.Vector {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]r3.Vector, len(e.localMap))
	copy(out, e.localMap)
	return out
}

// LastFrameFeatures returns the latest frame's fake features in the
// estimator's own frame.
func (e *Estimator) LastFrameFeatures() []r3.Vector {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]r3.Vector, len(e.lastFrame))
	copy(out, e.lastFrame)
	return out
}

// StaticTransforms is a TransformSource serving fixed transforms regardless of
// the requested time.
type StaticTransforms struct {
	mu    sync.Mutex
	poses map[string]spatialmath.Pose
}

// NewStaticTransforms returns an empty static transform source.
func NewStaticTransforms() *StaticTransforms {
	return &StaticTransforms{poses: map[string]spatialmath.Pose{}}
}

// Set registers the transform between two frames.
func (s *StaticTransforms) Set(from, to string, pose spatialmath.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poses[from+"->"+to] = pose
}

// Transform returns the registered transform or ErrTransformUnavailable.
func (s *StaticTransforms) Transform(
	ctx context.Context,
	from, to string,
	at time.Time,
) (spatialmath.Pose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pose, ok := s.poses[from+"->"+to]
	if !ok {
		return nil, odometry.ErrTransformUnavailable
	}
	return pose, nil
}

// LoggingSink is a Sink that wants every product and logs what it receives.
type LoggingSink struct {
	logger logging.Logger
}

// NewLoggingSink returns a sink logging all published products.
func NewLoggingSink(logger logging.Logger) *LoggingSink {
	return &LoggingSink{logger: logger}
}

// Wants reports interest in every product.
func (s *LoggingSink) Wants(odometry.Product) bool { return true }

// PublishPose logs the update.
func (s *LoggingSink) PublishPose(ctx context.Context, u odometry.PoseUpdate) {
	if u.Lost() {
		s.logger.Warnw("odometry pose lost", "stamp", u.Stamp)
		return
	}
	s.logger.Infow("odometry pose",
		"stamp", u.Stamp,
		"pose", spatialmath.PoseToProtobuf(u.Pose))
}

// PublishDiagnostics logs the diagnostics record.
func (s *LoggingSink) PublishDiagnostics(ctx context.Context, d odometry.Diagnostics) {
	s.logger.Debugw("odometry diagnostics",
		"stamp", d.Stamp,
		"lost", d.Lost,
		"inliers", d.Inliers,
		"variance", d.Variance)
}

// PublishCloud logs the cloud size.
func (s *LoggingSink) PublishCloud(
	ctx context.Context,
	p odometry.Product,
	cloud pointcloud.PointCloud,
	stamp time.Time,
) {
	s.logger.Debugw("odometry cloud", "product", p.String(), "size", cloud.Size(), "stamp", stamp)
}

// Flush drops nothing; the sink buffers nothing.
func (s *LoggingSink) Flush(context.Context) {}
