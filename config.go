package odometry

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	goutils "go.viam.com/utils"
)

const (
	defaultWaitForTransform = 100 * time.Millisecond
	defaultQueryRadiusM     = 5.
)

// Config describes how to configure an odometry session.
type Config struct {
	SensorFrame string `json:"sensor_frame"`
	OdomFrame   string `json:"odom_frame"`
	// FramePrefix, when set, is prepended to every configured frame name.
	FramePrefix      string `json:"frame_prefix"`
	GroundTruthFrame string `json:"ground_truth_frame"`
	// GuessFrame defaults to the sensor frame when guessing is enabled.
	GuessFrame          string  `json:"guess_frame"`
	GuessFromTransforms bool    `json:"guess_from_transforms"`
	PublishTransforms   *bool   `json:"publish_transforms"`
	WaitForTransform    *bool   `json:"wait_for_transform"`
	WaitForTransformSec float64 `json:"wait_for_transform_sec"`
	ResetCountdown      int     `json:"reset_countdown"`
	PublishNullWhenLost *bool   `json:"publish_null_when_lost"`
	// InitialPose is "x y z roll pitch yaw" with angles in radians.
	InitialPose         string            `json:"initial_pose"`
	EstimatorParamsPath string            `json:"estimator_params_path"`
	EstimatorParams     map[string]string `json:"estimator_params"`
	QueryRadiusM        float64           `json:"query_radius_m"`
}

// Validate ensures the config is valid.
func (c *Config) Validate(path string) error {
	if c.SensorFrame == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "sensor_frame")
	}
	if c.OdomFrame == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "odom_frame")
	}
	if c.WaitForTransformSec < 0 {
		return goutils.NewConfigValidationError(path, errors.New("wait_for_transform_sec cannot be negative"))
	}
	if c.ResetCountdown < 0 {
		return goutils.NewConfigValidationError(path, errors.New("reset_countdown cannot be negative"))
	}
	return nil
}

// normalize applies the frame prefix, fills frame defaults, and resolves
// conflicting guess settings, returning the effective configuration.
func (c Config) normalize(logger logging.Logger) Config {
	prefix := func(frame string) string {
		if c.FramePrefix == "" || frame == "" {
			return frame
		}
		return c.FramePrefix + "/" + frame
	}
	c.SensorFrame = prefix(c.SensorFrame)
	c.OdomFrame = prefix(c.OdomFrame)
	c.GroundTruthFrame = prefix(c.GroundTruthFrame)
	c.GuessFrame = prefix(c.GuessFrame)
	if c.GuessFrame == "" {
		c.GuessFrame = c.SensorFrame
	}
	if c.GuessFromTransforms && c.publishTransforms() && c.GuessFrame == c.SensorFrame {
		logger.Warnw(
			"guess_from_transforms cannot be used while transforms are published for the same frame; disabling guess",
			"frame", c.SensorFrame)
		c.GuessFromTransforms = false
	}
	return c
}

func (c Config) publishTransforms() bool {
	return c.PublishTransforms == nil || *c.PublishTransforms
}

func (c Config) publishNullWhenLost() bool {
	return c.PublishNullWhenLost == nil || *c.PublishNullWhenLost
}

// waitForTransform returns the bounded-wait duration for transform lookups;
// zero means lookups are attempted exactly once.
func (c Config) waitForTransform() time.Duration {
	if c.WaitForTransform != nil && !*c.WaitForTransform {
		return 0
	}
	if c.WaitForTransformSec == 0 {
		return defaultWaitForTransform
	}
	return time.Duration(c.WaitForTransformSec * float64(time.Second))
}

func (c Config) queryRadius() float64 {
	if c.QueryRadiusM <= 0 {
		return defaultQueryRadiusM
	}
	return c.QueryRadiusM
}

// parseInitialPose parses an "x y z roll pitch yaw" pose string, angles in
// radians.
func parseInitialPose(s string) (spatialmath.Pose, error) {
	fields := strings.Fields(s)
	if len(fields) != 6 {
		return nil, errors.Errorf("wrong initial pose format %q; should be \"x y z roll pitch yaw\" with angles in radians", s)
	}
	var vals [6]float64
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing initial pose component %q", field)
		}
		vals[i] = v
	}
	return spatialmath.NewPose(
		r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]},
		&spatialmath.EulerAngles{Roll: vals[3], Pitch: vals[4], Yaw: vals[5]},
	), nil
}
