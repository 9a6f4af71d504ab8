// Package main runs a demonstration odometry session over synthetic
// observations produced by the fake estimator.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"

	"go.viam.com/odometry"
	"go.viam.com/odometry/fake"
	"go.viam.com/odometry/params"
)

var logger = logging.NewLogger("odometry-server")

func main() {
	goutils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	flagSet := flag.NewFlagSet(args[0], flag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to a session config JSON file")
	rateMs := flagSet.Int("rate_ms", 100, "observation period in milliseconds")
	if err := flagSet.Parse(args[1:]); err != nil {
		return err
	}

	cfg := odometry.Config{
		SensorFrame: "base_link",
		OdomFrame:   "odom",
	}
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return errors.Wrap(err, "reading config")
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return errors.Wrap(err, "parsing config")
		}
	}

	set, err := params.Load(
		params.Family{Visual: true},
		cfg.EstimatorParamsPath,
		cfg.EstimatorParams,
		flagSet.Args(),
		logger,
	)
	if err != nil {
		return err
	}
	if countdown := set.ResetCountdown(); cfg.ResetCountdown == 0 {
		cfg.ResetCountdown = countdown
	}
	opts, err := set.Decode()
	if err != nil {
		return err
	}
	logger.Debugw("estimator options", "strategy", opts.Strategy, "min_inliers", opts.MinInliers)

	session, err := odometry.NewSession(
		cfg,
		fake.NewEstimator(),
		fake.NewStaticTransforms(),
		fake.NewLoggingSink(logger),
		logger,
	)
	if err != nil {
		return err
	}

	period := time.Duration(*rateMs) * time.Millisecond
	for {
		if !goutils.SelectContextOrWait(ctx, period) {
			return nil
		}
		now := time.Now()
		session.ProcessObservation(ctx, &odometry.Observation{Stamp: now}, now)
	}
}
