package odometry

import (
	"context"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/mat"
)

// A Product identifies one output channel of the session. Derived geometry
// products are only computed once the sink reports interest in them.
type Product int

// The session's output channels.
const (
	ProductPose Product = iota
	ProductDiagnostics
	ProductLocalMap
	ProductLastFrame
	ProductLocalScanMap
)

func (p Product) String() string {
	switch p {
	case ProductPose:
		return "pose"
	case ProductDiagnostics:
		return "diagnostics"
	case ProductLocalMap:
		return "local_map"
	case ProductLastFrame:
		return "last_frame"
	case ProductLocalScanMap:
		return "local_scan_map"
	default:
		return "unknown"
	}
}

// LostCovariance fills the covariance diagonals of an update whose pose or
// velocity is unknown.
const LostCovariance = 9999.

// A PoseUpdate is one publishable odometry update. A nil Pose is the explicit
// lost sentinel: it tells consumers that tracking failed for this observation,
// as opposed to no update having been sent at all.
type PoseUpdate struct {
	Stamp          time.Time
	ReferenceFrame string
	SensorFrame    string
	Pose           spatialmath.Pose
	// Covariance and TwistCovariance are 6x6 (x y z roll pitch yaw).
	Covariance      *mat.SymDense
	Velocity        *Velocity
	TwistCovariance *mat.SymDense
}

// Lost reports whether the update is the lost sentinel.
func (u *PoseUpdate) Lost() bool { return u.Pose == nil }

// Diagnostics is the per-observation estimation record. It is cheap to build
// and surfaced on every cycle regardless of outcome.
type Diagnostics struct {
	Stamp          time.Time
	ReferenceFrame string
	Lost           bool
	Variance       float64
	Inliers        int
	ICPInlierRatio float64
}

// A Sink consumes the session's outputs; the boundary layer implements it to
// publish them. The session queries Wants before deriving a product so that
// nobody pays point-cloud transform cost for outputs without readers.
type Sink interface {
	Wants(p Product) bool
	PublishPose(ctx context.Context, u PoseUpdate)
	PublishDiagnostics(ctx context.Context, d Diagnostics)
	PublishCloud(ctx context.Context, p Product, cloud pointcloud.PointCloud, stamp time.Time)
	// Flush drops buffered, not yet delivered artifacts. Called on session
	// resets so stale output never outlives the pose it was derived from.
	Flush(ctx context.Context)
}

// diagonalCovariance returns a 6x6 covariance with v along the diagonal.
func diagonalCovariance(v float64) *mat.SymDense {
	cov := mat.NewSymDense(6, nil)
	for i := 0; i < 6; i++ {
		cov.SetSym(i, i, v)
	}
	return cov
}

// cloudFromPoints builds a point cloud from feature points. A non-nil
// transform re-expresses each point through it first.
func cloudFromPoints(points []r3.Vector, transform spatialmath.Pose) (pointcloud.PointCloud, error) {
	cloud := pointcloud.NewBasicPointCloud(len(points))
	for _, pt := range points {
		if transform != nil {
			pt = spatialmath.Compose(transform, spatialmath.NewPoseFromPoint(pt)).Point()
		}
		if err := cloud.Set(pt, pointcloud.NewBasicData()); err != nil {
			return nil, err
		}
	}
	return cloud, nil
}
