// Package odometry tracks the incremental pose of a moving sensor platform by
// wrapping an opaque relative-motion estimator. Each observation is fed to the
// estimator together with an optional motion guess, and the result is turned
// into a consistent, continuously published pose stream that survives
// estimator tracking loss.
package odometry

import (
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/spatialmath"
)

// An Observation is one timestamped bundle of raw sensor input, passed
// opaquely to the estimator. The session hands the estimator a private copy
// since estimators may mutate the data while processing it.
type Observation struct {
	Stamp      time.Time
	Cloud      pointcloud.PointCloud
	ImageBytes []byte
}

// Clone returns a deep copy of the observation.
func (o *Observation) Clone() *Observation {
	if o == nil {
		return nil
	}
	clone := &Observation{Stamp: o.Stamp}
	if o.ImageBytes != nil {
		clone.ImageBytes = make([]byte, len(o.ImageBytes))
		copy(clone.ImageBytes, o.ImageBytes)
	}
	if o.Cloud != nil {
		cloud := pointcloud.NewBasicPointCloud(o.Cloud.Size())
		o.Cloud.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
			return cloud.Set(p, d) == nil
		})
		clone.Cloud = cloud
	}
	return clone
}

// A Velocity is the platform twist estimated over the previous step.
type Velocity struct {
	Linear  r3.Vector
	Angular spatialmath.AngularVelocity
}

// A Result is the estimator's output for a single observation. A nil Pose
// means tracking was lost for that observation; that is a first-class outcome
// driving the recovery policy, not an error.
type Result struct {
	Pose           spatialmath.Pose
	Variance       float64
	Inliers        int
	ICPInlierRatio float64
	Velocity       *Velocity
	LocalScanMap   pointcloud.PointCloud
}

// An Estimator is the opaque relative-motion estimator a session drives. It is
// stateful: it remembers its current pose and the stamp of the last processed
// observation, and Reset re-anchors it, clearing internal staleness.
type Estimator interface {
	// Process consumes one observation plus an optional motion guess (nil when
	// no guess is available) and returns the estimate. The call is synchronous;
	// its duration is the estimator's own concern.
	Process(obs *Observation, guess spatialmath.Pose) *Result
	// Reset re-anchors the estimator at the given pose.
	Reset(to spatialmath.Pose)
	// Pose returns the estimator's current pose.
	Pose() spatialmath.Pose
	// PreviousStamp returns the stamp of the last processed observation, or the
	// zero time if none has been processed yet.
	PreviousStamp() time.Time
}

// A FeatureSource exposes the estimator's internal geometry for visualization.
// CurrentMap is the maintained local feature map in the session frame (empty
// for modes that keep no map). LastFrame is the latest matched frame's
// features in the estimator's own frame; they must be re-expressed in the
// session frame via the current pose before publication.
type FeatureSource interface {
	CurrentMap() []r3.Vector
	LastFrame() []r3.Vector
}

// A MapMaintainer is implemented by frame-to-map estimators that keep a local
// feature map between observations.
type MapMaintainer interface {
	LocalMap() []r3.Vector
	LastFrameFeatures() []r3.Vector
}

// A FrameKeeper is implemented by frame-to-frame estimators that only retain
// the previous reference frame.
type FrameKeeper interface {
	ReferenceFrameFeatures() []r3.Vector
}

// featureSourceFor selects the mode-specific feature view once, at session
// construction, so the processing loop never branches on estimator type.
func featureSourceFor(est Estimator) FeatureSource {
	switch v := est.(type) {
	case MapMaintainer:
		return frameToMapView{v}
	case FrameKeeper:
		return frameToFrameView{v}
	default:
		return nil
	}
}

type frameToMapView struct {
	m MapMaintainer
}

func (v frameToMapView) CurrentMap() []r3.Vector { return v.m.LocalMap() }
func (v frameToMapView) LastFrame() []r3.Vector  { return v.m.LastFrameFeatures() }

type frameToFrameView struct {
	f FrameKeeper
}

func (v frameToFrameView) CurrentMap() []r3.Vector { return nil }
func (v frameToFrameView) LastFrame() []r3.Vector  { return v.f.ReferenceFrameFeatures() }
