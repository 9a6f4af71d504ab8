package odometry_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/test"

	"go.viam.com/odometry"
	"go.viam.com/odometry/testutils/inject"
)

func TestWaitingTransformSourceZeroTimeout(t *testing.T) {
	src := &inject.TransformSource{}
	test.That(t, odometry.NewWaitingTransformSource(src, 0, nil), test.ShouldEqual, src)
	test.That(t, odometry.NewWaitingTransformSource(src, -time.Second, nil), test.ShouldEqual, src)
}

func TestWaitingTransformSourceRetriesUntilAvailable(t *testing.T) {
	pose := spatialmath.NewPoseFromPoint(r3.Vector{X: 1})
	var calls int
	src := &inject.TransformSource{
		TransformFunc: func(ctx context.Context, from, to string, at time.Time) (spatialmath.Pose, error) {
			calls++
			if calls < 3 {
				return nil, odometry.ErrTransformUnavailable
			}
			return pose, nil
		},
	}
	wrapped := odometry.NewWaitingTransformSource(src, time.Second, nil)

	got, err := wrapped.Transform(context.Background(), "odom", "base_link", epoch)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqual(got, pose), test.ShouldBeTrue)
	test.That(t, calls, test.ShouldEqual, 3)
}

func TestWaitingTransformSourceTimesOut(t *testing.T) {
	var calls int
	src := &inject.TransformSource{
		TransformFunc: func(ctx context.Context, from, to string, at time.Time) (spatialmath.Pose, error) {
			calls++
			return nil, odometry.ErrTransformUnavailable
		},
	}
	wrapped := odometry.NewWaitingTransformSource(src, 35*time.Millisecond, nil)

	_, err := wrapped.Transform(context.Background(), "odom", "base_link", epoch)
	test.That(t, errors.Is(err, odometry.ErrTransformUnavailable), test.ShouldBeTrue)
	test.That(t, calls, test.ShouldBeGreaterThan, 1)
}

func TestWaitingTransformSourceZeroStamp(t *testing.T) {
	var calls int
	src := &inject.TransformSource{
		TransformFunc: func(ctx context.Context, from, to string, at time.Time) (spatialmath.Pose, error) {
			calls++
			return nil, odometry.ErrTransformUnavailable
		},
	}
	wrapped := odometry.NewWaitingTransformSource(src, time.Second, nil)

	// nothing to wait for without a stamp: exactly one attempt
	_, err := wrapped.Transform(context.Background(), "odom", "base_link", time.Time{})
	test.That(t, errors.Is(err, odometry.ErrTransformUnavailable), test.ShouldBeTrue)
	test.That(t, calls, test.ShouldEqual, 1)
}

func TestWaitingTransformSourceOtherErrorsPassThrough(t *testing.T) {
	lookupErr := errors.New("frame tree disconnected")
	var calls int
	src := &inject.TransformSource{
		TransformFunc: func(ctx context.Context, from, to string, at time.Time) (spatialmath.Pose, error) {
			calls++
			return nil, lookupErr
		},
	}
	wrapped := odometry.NewWaitingTransformSource(src, time.Second, nil)

	_, err := wrapped.Transform(context.Background(), "odom", "base_link", epoch)
	test.That(t, err, test.ShouldEqual, lookupErr)
	test.That(t, calls, test.ShouldEqual, 1)
}

func TestWaitingTransformSourceCanceledContext(t *testing.T) {
	var calls int
	src := &inject.TransformSource{
		TransformFunc: func(ctx context.Context, from, to string, at time.Time) (spatialmath.Pose, error) {
			calls++
			return nil, odometry.ErrTransformUnavailable
		},
	}
	wrapped := odometry.NewWaitingTransformSource(src, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := wrapped.Transform(ctx, "odom", "base_link", epoch)
	test.That(t, errors.Is(err, odometry.ErrTransformUnavailable), test.ShouldBeTrue)
	test.That(t, calls, test.ShouldEqual, 1)
}
