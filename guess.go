package odometry

import (
	"context"
	"time"

	"go.viam.com/rdk/spatialmath"
)

// guessResolver derives a relative motion guess between two timestamps from an
// independently tracked frame: the pose of the guess frame relative to the
// odometry frame is looked up at both stamps and the delta between them is the
// expected motion.
type guessResolver struct {
	tf         TransformSource
	odomFrame  string
	guessFrame string
}

// resolve returns the platform motion between prev and cur, or false when no
// guess can be computed. An unset previous stamp (first frame) is passed
// through to the source, which treats the zero time as "latest available";
// only unresolved lookups produce absence, never an error, and the caller
// decides how fatal absence is.
func (g *guessResolver) resolve(ctx context.Context, prev, cur time.Time) (spatialmath.Pose, bool) {
	previousPose, err := g.tf.Transform(ctx, g.odomFrame, g.guessFrame, prev)
	if err != nil {
		return nil, false
	}
	pose, err := g.tf.Transform(ctx, g.odomFrame, g.guessFrame, cur)
	if err != nil {
		return nil, false
	}
	return spatialmath.Compose(spatialmath.PoseInverse(previousPose), pose), true
}
