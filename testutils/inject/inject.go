// Package inject provides injectable odometry collaborators for testing.
package inject

import (
	"context"
	"time"

	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/spatialmath"

	"go.viam.com/odometry"
)

// Estimator is an injectable odometry.Estimator.
type Estimator struct {
	ProcessFunc       func(obs *odometry.Observation, guess spatialmath.Pose) *odometry.Result
	ResetFunc         func(to spatialmath.Pose)
	PoseFunc          func() spatialmath.Pose
	PreviousStampFunc func() time.Time
}

// Process calls ProcessFunc or returns an empty (lost) result.
func (e *Estimator) Process(obs *odometry.Observation, guess spatialmath.Pose) *odometry.Result {
	if e.ProcessFunc == nil {
		return &odometry.Result{}
	}
	return e.ProcessFunc(obs, guess)
}

// Reset calls ResetFunc or does nothing.
func (e *Estimator) Reset(to spatialmath.Pose) {
	if e.ResetFunc == nil {
		return
	}
	e.ResetFunc(to)
}

// Pose calls PoseFunc or returns the identity pose.
func (e *Estimator) Pose() spatialmath.Pose {
	if e.PoseFunc == nil {
		return spatialmath.NewZeroPose()
	}
	return e.PoseFunc()
}

// PreviousStamp calls PreviousStampFunc or returns the zero time.
func (e *Estimator) PreviousStamp() time.Time {
	if e.PreviousStampFunc == nil {
		return time.Time{}
	}
	return e.PreviousStampFunc()
}

// TransformSource is an injectable odometry.TransformSource.
type TransformSource struct {
	TransformFunc func(ctx context.Context, from, to string, at time.Time) (spatialmath.Pose, error)
}

// Transform calls TransformFunc or reports unavailability.
func (s *TransformSource) Transform(
	ctx context.Context,
	from, to string,
	at time.Time,
) (spatialmath.Pose, error) {
	if s.TransformFunc == nil {
		return nil, odometry.ErrTransformUnavailable
	}
	return s.TransformFunc(ctx, from, to, at)
}

// Sink is an injectable odometry.Sink. An unset WantsFunc wants everything;
// unset publish funcs drop the output.
type Sink struct {
	WantsFunc              func(p odometry.Product) bool
	PublishPoseFunc        func(ctx context.Context, u odometry.PoseUpdate)
	PublishDiagnosticsFunc func(ctx context.Context, d odometry.Diagnostics)
	PublishCloudFunc       func(ctx context.Context, p odometry.Product, cloud pointcloud.PointCloud, stamp time.Time)
	FlushFunc              func(ctx context.Context)
}

// Wants calls WantsFunc or reports interest in everything.
func (s *Sink) Wants(p odometry.Product) bool {
	if s.WantsFunc == nil {
		return true
	}
	return s.WantsFunc(p)
}

// PublishPose calls PublishPoseFunc if set.
func (s *Sink) PublishPose(ctx context.Context, u odometry.PoseUpdate) {
	if s.PublishPoseFunc != nil {
		s.PublishPoseFunc(ctx, u)
	}
}

// PublishDiagnostics calls PublishDiagnosticsFunc if set.
func (s *Sink) PublishDiagnostics(ctx context.Context, d odometry.Diagnostics) {
	if s.PublishDiagnosticsFunc != nil {
		s.PublishDiagnosticsFunc(ctx, d)
	}
}

// PublishCloud calls PublishCloudFunc if set.
func (s *Sink) PublishCloud(
	ctx context.Context,
	p odometry.Product,
	cloud pointcloud.PointCloud,
	stamp time.Time,
) {
	if s.PublishCloudFunc != nil {
		s.PublishCloudFunc(ctx, p, cloud, stamp)
	}
}

// Flush calls FlushFunc if set.
func (s *Sink) Flush(ctx context.Context) {
	if s.FlushFunc != nil {
		s.FlushFunc(ctx)
	}
}
