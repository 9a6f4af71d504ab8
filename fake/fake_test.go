package fake_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/test"

	"go.viam.com/odometry"
	"go.viam.com/odometry/fake"
)

var epoch = time.Date(2023, 4, 12, 10, 0, 0, 0, time.UTC)

func TestFakeEstimatorWalk(t *testing.T) {
	est := fake.NewEstimator()
	test.That(t, spatialmath.PoseAlmostEqual(est.Pose(), spatialmath.NewZeroPose()), test.ShouldBeTrue)

	result := est.Process(&odometry.Observation{Stamp: epoch}, nil)
	test.That(t, result.Pose, test.ShouldNotBeNil)
	test.That(t, result.Pose.Point().X, test.ShouldAlmostEqual, 0.05)
	// no previous stamp yet, so no velocity
	test.That(t, result.Velocity, test.ShouldBeNil)

	result = est.Process(&odometry.Observation{Stamp: epoch.Add(time.Second)}, nil)
	test.That(t, result.Pose.Point().X, test.ShouldAlmostEqual, 0.1)
	test.That(t, result.Velocity, test.ShouldNotBeNil)
	test.That(t, result.Velocity.Linear.X, test.ShouldAlmostEqual, 0.05)
	test.That(t, est.PreviousStamp().Equal(epoch.Add(time.Second)), test.ShouldBeTrue)
}

func TestFakeEstimatorGuess(t *testing.T) {
	est := fake.NewEstimator()
	guess := spatialmath.NewPoseFromPoint(r3.Vector{Y: 1})
	result := est.Process(&odometry.Observation{Stamp: epoch}, guess)
	test.That(t, result.Pose.Point().Y, test.ShouldAlmostEqual, 1)
	test.That(t, result.Pose.Point().X, test.ShouldAlmostEqual, 0)
}

func TestFakeEstimatorFailFor(t *testing.T) {
	est := fake.NewEstimator()
	est.FailFor(2)

	for i := 0; i < 2; i++ {
		result := est.Process(&odometry.Observation{Stamp: epoch.Add(time.Duration(i) * time.Second)}, nil)
		test.That(t, result.Pose, test.ShouldBeNil)
	}
	result := est.Process(&odometry.Observation{Stamp: epoch.Add(2 * time.Second)}, nil)
	test.That(t, result.Pose, test.ShouldNotBeNil)
}

func TestFakeEstimatorFeatures(t *testing.T) {
	est := fake.NewEstimator()
	test.That(t, est.LocalMap(), test.ShouldHaveLength, 0)

	est.Process(&odometry.Observation{Stamp: epoch}, nil)
	est.Process(&odometry.Observation{Stamp: epoch.Add(time.Second)}, nil)
	test.That(t, est.LocalMap(), test.ShouldHaveLength, 2)
	test.That(t, est.LastFrameFeatures(), test.ShouldHaveLength, 3)

	est.Reset(spatialmath.NewZeroPose())
	test.That(t, est.LocalMap(), test.ShouldHaveLength, 0)
	test.That(t, est.LastFrameFeatures(), test.ShouldHaveLength, 0)
}

func TestStaticTransforms(t *testing.T) {
	tf := fake.NewStaticTransforms()
	_, err := tf.Transform(context.Background(), "odom", "base_link", epoch)
	test.That(t, err, test.ShouldBeError, odometry.ErrTransformUnavailable)

	pose := spatialmath.NewPoseFromPoint(r3.Vector{X: 1})
	tf.Set("odom", "base_link", pose)
	got, err := tf.Transform(context.Background(), "odom", "base_link", epoch)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqual(got, pose), test.ShouldBeTrue)

	// direction matters
	_, err = tf.Transform(context.Background(), "base_link", "odom", epoch)
	test.That(t, err, test.ShouldBeError, odometry.ErrTransformUnavailable)
}
