package odometry

import (
	"context"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/test"
)

type transformSourceFunc func(ctx context.Context, from, to string, at time.Time) (spatialmath.Pose, error)

func (f transformSourceFunc) Transform(
	ctx context.Context,
	from, to string,
	at time.Time,
) (spatialmath.Pose, error) {
	return f(ctx, from, to, at)
}

func TestGuessResolverFirstFrame(t *testing.T) {
	cur := time.Date(2023, 4, 12, 10, 0, 0, 0, time.UTC)
	poseA := spatialmath.NewPoseFromPoint(r3.Vector{X: 1})
	poseB := spatialmath.NewPoseFromPoint(r3.Vector{X: 1.2})

	var latestLookups int
	g := &guessResolver{
		tf: transformSourceFunc(func(ctx context.Context, from, to string, at time.Time) (spatialmath.Pose, error) {
			if at.IsZero() {
				latestLookups++
				return poseA, nil
			}
			return poseB, nil
		}),
		odomFrame:  "odom",
		guessFrame: "wheel_odom",
	}

	// no previous stamp yet: the zero time queries the latest transform
	guess, ok := g.resolve(context.Background(), time.Time{}, cur)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, latestLookups, test.ShouldEqual, 1)
	expected := spatialmath.Compose(spatialmath.PoseInverse(poseA), poseB)
	test.That(t, spatialmath.PoseAlmostEqual(guess, expected), test.ShouldBeTrue)
}

func TestGuessResolverDelta(t *testing.T) {
	prev := time.Date(2023, 4, 12, 10, 0, 0, 0, time.UTC)
	cur := prev.Add(100 * time.Millisecond)
	poseA := spatialmath.NewPose(r3.Vector{X: 1}, &spatialmath.EulerAngles{Yaw: 0.1})
	poseB := spatialmath.NewPose(r3.Vector{X: 1.4, Y: 0.1}, &spatialmath.EulerAngles{Yaw: 0.15})

	g := &guessResolver{
		tf: transformSourceFunc(func(ctx context.Context, from, to string, at time.Time) (spatialmath.Pose, error) {
			test.That(t, from, test.ShouldEqual, "odom")
			test.That(t, to, test.ShouldEqual, "wheel_odom")
			if at.Equal(prev) {
				return poseA, nil
			}
			return poseB, nil
		}),
		odomFrame:  "odom",
		guessFrame: "wheel_odom",
	}

	guess, ok := g.resolve(context.Background(), prev, cur)
	test.That(t, ok, test.ShouldBeTrue)
	expected := spatialmath.Compose(spatialmath.PoseInverse(poseA), poseB)
	test.That(t, spatialmath.PoseAlmostEqual(guess, expected), test.ShouldBeTrue)
}

func TestGuessResolverUnresolvedLookup(t *testing.T) {
	prev := time.Date(2023, 4, 12, 10, 0, 0, 0, time.UTC)
	cur := prev.Add(100 * time.Millisecond)

	for name, failAt := range map[string]time.Time{"previous stamp": prev, "current stamp": cur} {
		t.Run(name, func(t *testing.T) {
			g := &guessResolver{
				tf: transformSourceFunc(func(ctx context.Context, from, to string, at time.Time) (spatialmath.Pose, error) {
					if at.Equal(failAt) {
						return nil, ErrTransformUnavailable
					}
					return spatialmath.NewZeroPose(), nil
				}),
				odomFrame:  "odom",
				guessFrame: "wheel_odom",
			}
			guess, ok := g.resolve(context.Background(), prev, cur)
			test.That(t, ok, test.ShouldBeFalse)
			test.That(t, guess, test.ShouldBeNil)
		})
	}
}
