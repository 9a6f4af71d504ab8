// Package params manages estimator parameter sets. A set starts from the
// defaults for the estimator family in use and is overlaid, in precedence
// order, by a JSON parameter file, per-key overrides, and command-line style
// arguments.
package params

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// Well-known parameter keys.
const (
	KeyStrategy       = "Odom/Strategy"
	KeyGuessMotion    = "Odom/GuessMotion"
	KeyResetCountdown = "Odom/ResetCountdown"

	KeyMinInliers  = "Vis/MinInliers"
	KeyMaxFeatures = "Vis/MaxFeatures"
	KeyMaxDepth    = "Vis/MaxDepth"

	KeyStereoMaxDisparity = "Stereo/MaxDisparity"

	KeyICPIterations        = "Icp/Iterations"
	KeyICPMaxCorrespondence = "Icp/MaxCorrespondenceDistance"
	KeyICPVoxelSize         = "Icp/VoxelSize"
)

// minInliersFloor is the hard floor for Vis/MinInliers; lower values are
// clamped, never rejected.
const minInliersFloor = 8

// A Family selects which parameter groups apply to the estimator in use.
type Family struct {
	Visual bool
	Stereo bool
	ICP    bool
}

// A Set is an estimator parameter map; values stay stringly typed until
// Decode.
type Set map[string]string

// Defaults returns the default odometry parameter set for the family.
func Defaults(f Family) Set {
	set := Set{
		KeyStrategy:       "0",
		KeyGuessMotion:    "true",
		KeyResetCountdown: "0",
	}
	if f.Visual {
		set[KeyMinInliers] = "20"
		set[KeyMaxFeatures] = "1000"
		set[KeyMaxDepth] = "0"
	}
	if f.Stereo {
		set[KeyStereoMaxDisparity] = "128"
	}
	if f.ICP {
		set[KeyICPIterations] = "30"
		set[KeyICPMaxCorrespondence] = "0.1"
		set[KeyICPVoxelSize] = "0.05"
	}
	return set
}

// renamed maps historical parameter names to their replacements; an empty
// replacement means the parameter no longer exists.
var renamed = map[string]string{
	"Odom/Type":           KeyStrategy,
	"Odom/MinInliers":     KeyMinInliers,
	"Odom/MaxFeatures":    KeyMaxFeatures,
	"Odom/InlierDistance": "",
}

// Load builds the effective parameter set for the family: defaults, then the
// JSON file at path (if any), then per-key overrides, then "--Key=value" (or
// "--Key value") arguments, in that precedence order. Only known odometry
// parameters are taken from the file; unknown overrides are reported, and
// renamed parameters are migrated where possible.
func Load(f Family, path string, overrides map[string]string, args []string, logger logging.Logger) (Set, error) {
	set := Defaults(f)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Errorw("estimator parameter file not found", "path", path, "error", err)
		} else {
			var fileParams map[string]string
			if err := json.Unmarshal(data, &fileParams); err != nil {
				return nil, errors.Wrapf(err, "parsing estimator parameter file %q", path)
			}
			logger.Infow("loading odometry parameters", "path", path)
			for key := range set {
				if v, ok := fileParams[key]; ok {
					set[key] = v
				}
			}
		}
	}

	for key, value := range overrides {
		set.apply(key, value, logger)
	}

	for _, kv := range parseArgs(args) {
		set.apply(kv[0], kv[1], logger)
	}

	set.clamp(logger)
	return set, nil
}

// apply sets one parameter, migrating renamed keys and reporting unknown
// ones.
func (s Set) apply(key, value string, logger logging.Logger) {
	if _, ok := s[key]; ok {
		logger.Infow("setting odometry parameter", "key", key, "value", value)
		s[key] = value
		return
	}
	if replacement, wasRenamed := renamed[key]; wasRenamed {
		if replacement == "" {
			logger.Errorw("odometry parameter doesn't exist anymore", "key", key)
			return
		}
		if _, ok := s[replacement]; ok {
			logger.Warnw("odometry parameter name changed, value is set to the new name",
				"old", key, "new", replacement)
			s[replacement] = value
			return
		}
	}
	logger.Errorw("unknown odometry parameter", "key", key)
}

// clamp enforces parameter floors with a warning rather than rejecting the
// set.
func (s Set) clamp(logger logging.Logger) {
	if v, ok := s[KeyMinInliers]; ok {
		if n, err := strconv.Atoi(v); err == nil && n < minInliersFloor {
			logger.Warnw("parameter below hard floor, clamping",
				"key", KeyMinInliers, "value", n, "floor", minInliersFloor)
			s[KeyMinInliers] = strconv.Itoa(minInliersFloor)
		}
	}
}

// parseArgs extracts "--Key=value" and "--Key value" pairs.
func parseArgs(args []string) [][2]string {
	var out [][2]string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		arg = strings.TrimPrefix(arg, "--")
		if key, value, found := strings.Cut(arg, "="); found {
			out = append(out, [2]string{key, value})
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			out = append(out, [2]string{arg, args[i+1]})
			i++
		}
	}
	return out
}

// ResetCountdown extracts the session reset countdown and zeroes it in the
// set: the session owns failure recovery, so the black-box estimator must not
// also auto-reset on its own.
func (s Set) ResetCountdown() int {
	n, err := strconv.Atoi(s[KeyResetCountdown])
	if err != nil || n < 0 {
		n = 0
	}
	s[KeyResetCountdown] = "0"
	return n
}

// Options is the typed view of a parameter set handed to estimator
// constructors.
type Options struct {
	Strategy                     int     `json:"Odom/Strategy"`
	GuessMotion                  bool    `json:"Odom/GuessMotion"`
	ResetCountdown               int     `json:"Odom/ResetCountdown"`
	MinInliers                   int     `json:"Vis/MinInliers"`
	MaxFeatures                  int     `json:"Vis/MaxFeatures"`
	MaxDepth                     float64 `json:"Vis/MaxDepth"`
	MaxDisparity                 float64 `json:"Stereo/MaxDisparity"`
	ICPIterations                int     `json:"Icp/Iterations"`
	ICPMaxCorrespondenceDistance float64 `json:"Icp/MaxCorrespondenceDistance"`
	ICPVoxelSize                 float64 `json:"Icp/VoxelSize"`
}

// Decode converts the set into typed options.
func (s Set) Decode() (*Options, error) {
	var opts Options
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]string(s)); err != nil {
		return nil, errors.Wrap(err, "decoding odometry parameters")
	}
	return &opts, nil
}
