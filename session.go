package odometry

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"

	"go.viam.com/odometry/posegraph"
)

const poseGraphCapacity = 1000

// A Session owns the per-stream odometry state and sequences bootstrap, guess
// resolution, estimation, failure recovery, and output composition for each
// incoming observation. Observation processing and operator commands are
// serialized on a single lock, so a reset arriving mid-stream can never tear
// the session state.
type Session struct {
	id     uuid.UUID
	cfg    Config
	logger logging.Logger

	estimator Estimator
	features  FeatureSource
	tf        TransformSource
	sink      Sink

	mu         sync.Mutex
	paused     bool
	recovery   *recoveryPolicy
	guesser    *guessResolver
	lastStamp  time.Time
	graph      *posegraph.Graph
	nextNodeID int
}

// State is a snapshot of the mutable session state.
type State struct {
	CurrentPose         spatialmath.Pose
	Paused              bool
	ResetCountdownLimit int
	ResetRemaining      int
	LastProcessed       time.Time
}

// NewSession validates the config and assembles a session around the given
// estimator, transform source, and output sink.
func NewSession(
	cfg Config,
	estimator Estimator,
	tf TransformSource,
	sink Sink,
	logger logging.Logger,
) (*Session, error) {
	if estimator == nil {
		return nil, errors.New("an estimator is required")
	}
	if tf == nil {
		return nil, errors.New("a transform source is required")
	}
	if sink == nil {
		return nil, errors.New("an output sink is required")
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	cfg = cfg.normalize(logger)
	tf = NewWaitingTransformSource(tf, cfg.waitForTransform(), nil)

	s := &Session{
		id:        uuid.New(),
		cfg:       cfg,
		logger:    logger,
		estimator: estimator,
		features:  featureSourceFor(estimator),
		tf:        tf,
		sink:      sink,
		recovery:  newRecoveryPolicy(cfg.ResetCountdown),
		graph:     posegraph.New(poseGraphCapacity),
	}
	if cfg.GuessFromTransforms {
		s.guesser = &guessResolver{tf: tf, odomFrame: cfg.OdomFrame, guessFrame: cfg.GuessFrame}
	}
	if cfg.InitialPose != "" {
		pose, err := parseInitialPose(cfg.InitialPose)
		switch {
		case err != nil:
			logger.Errorw("invalid initial_pose, starting from identity", "value", cfg.InitialPose, "error", err)
		case !spatialmath.PoseAlmostEqual(pose, spatialmath.NewZeroPose()):
			estimator.Reset(pose)
		}
	}
	logger.Infow("odometry session created",
		"session", s.id.String(),
		"sensor_frame", cfg.SensorFrame,
		"odom_frame", cfg.OdomFrame,
		"reset_countdown", cfg.ResetCountdown)
	return s, nil
}

// ProcessObservation runs one step of the session: bootstrap the initial pose
// from the reference frame if needed, resolve a motion guess, invoke the
// estimator, and compose whatever outputs have readers. Observations must be
// delivered in arrival order; the call is inert while the session is paused
// and never re-entered concurrently thanks to the session lock.
func (s *Session) ProcessObservation(ctx context.Context, obs *Observation, stamp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	start := time.Now()

	// Sync with the first resolvable value of the external reference. Until it
	// resolves, observations are skipped and retried next frame.
	if s.cfg.GroundTruthFrame != "" &&
		spatialmath.PoseAlmostEqual(s.estimator.Pose(), spatialmath.NewZeroPose()) {
		initial, err := s.tf.Transform(ctx, s.cfg.GroundTruthFrame, s.cfg.SensorFrame, stamp)
		if err != nil {
			s.logger.Warnw("initial pose not yet available, skipping observation",
				"from", s.cfg.GroundTruthFrame,
				"to", s.cfg.SensorFrame,
				"stamp", stamp,
				"error", err)
			return
		}
		s.logger.Infow("initializing odometry pose from reference frame",
			"from", s.cfg.GroundTruthFrame,
			"to", s.cfg.SensorFrame,
			"pose", spatialmath.PoseToProtobuf(initial))
		s.estimator.Reset(initial)
	}

	var guess spatialmath.Pose
	if s.guesser != nil {
		var ok bool
		guess, ok = s.guesser.resolve(ctx, s.estimator.PreviousStamp(), stamp)
		if !ok {
			// The guess source was explicitly configured, so its absence is a
			// fault to report, not a condition to wait out.
			s.logger.Errorw("guess enabled but no guess could be computed, aborting odometry update",
				"odom_frame", s.cfg.OdomFrame,
				"guess_frame", s.cfg.GuessFrame)
			return
		}
	}

	result := s.estimator.Process(obs.Clone(), guess)
	if result == nil {
		result = &Result{}
	}
	s.lastStamp = stamp

	if result.Pose != nil {
		s.recovery.observeSuccess()
		s.recordNode(result.Pose, stamp)
		s.publishSuccess(ctx, result, stamp)
	} else {
		if s.cfg.publishNullWhenLost() {
			s.sink.PublishPose(ctx, PoseUpdate{
				Stamp:           stamp,
				ReferenceFrame:  s.cfg.OdomFrame,
				SensorFrame:     s.cfg.SensorFrame,
				Covariance:      diagonalCovariance(LostCovariance),
				TwistCovariance: diagonalCovariance(LostCovariance),
			})
		}
		s.recover(ctx, stamp)
	}

	if s.sink.Wants(ProductDiagnostics) {
		s.sink.PublishDiagnostics(ctx, Diagnostics{
			Stamp:          stamp,
			ReferenceFrame: s.cfg.OdomFrame,
			Lost:           result.Pose == nil,
			Variance:       result.Variance,
			Inliers:        result.Inliers,
			ICPInlierRatio: result.ICPInlierRatio,
		})
	}

	var stdDev float64
	if result.Pose != nil {
		stdDev = math.Sqrt(result.Variance)
	}
	s.logger.Debugw("odometry update",
		"quality", result.Inliers,
		"icp_ratio", result.ICPInlierRatio,
		"std_dev_m", stdDev,
		"update_time", time.Since(start))
}

// publishSuccess composes the outputs of a successful estimate, deriving each
// geometry product only when the sink wants it.
func (s *Session) publishSuccess(ctx context.Context, result *Result, stamp time.Time) {
	if s.sink.Wants(ProductPose) {
		update := PoseUpdate{
			Stamp:           stamp,
			ReferenceFrame:  s.cfg.OdomFrame,
			SensorFrame:     s.cfg.SensorFrame,
			Pose:            result.Pose,
			Covariance:      diagonalCovariance(2 * result.Variance),
			Velocity:        result.Velocity,
			TwistCovariance: diagonalCovariance(LostCovariance),
		}
		if result.Velocity != nil {
			update.TwistCovariance = diagonalCovariance(result.Variance)
		}
		s.sink.PublishPose(ctx, update)
	}

	if s.features != nil {
		if s.sink.Wants(ProductLocalMap) {
			if points := s.features.CurrentMap(); len(points) > 0 {
				if cloud, err := cloudFromPoints(points, nil); err != nil {
					s.logger.Warnw("composing local map cloud", "error", err)
				} else {
					s.sink.PublishCloud(ctx, ProductLocalMap, cloud, stamp)
				}
			}
		}
		if s.sink.Wants(ProductLastFrame) {
			if points := s.features.LastFrame(); len(points) > 0 {
				// Last-frame features shift with the estimator's own frame;
				// re-express them in the session frame via the new pose.
				if cloud, err := cloudFromPoints(points, result.Pose); err != nil {
					s.logger.Warnw("composing last frame cloud", "error", err)
				} else {
					s.sink.PublishCloud(ctx, ProductLastFrame, cloud, stamp)
				}
			}
		}
	}

	if s.sink.Wants(ProductLocalScanMap) && result.LocalScanMap != nil && result.LocalScanMap.Size() > 0 {
		s.sink.PublishCloud(ctx, ProductLocalScanMap, result.LocalScanMap, stamp)
	}
}

// recover applies the failure countdown and, when it trips, re-anchors the
// session: preferably to the sensor pose from an external transform source
// (e.g. a fusion filter), otherwise to the estimator's own last pose.
func (s *Session) recover(ctx context.Context, stamp time.Time) {
	if !s.recovery.enabled() {
		return
	}
	s.logger.Warnw("odometry lost, session will be reset after consecutive unsuccessful updates",
		"updates_remaining", s.recovery.remaining)
	if !s.recovery.observeFailure() {
		return
	}
	fused, err := s.tf.Transform(ctx, s.cfg.OdomFrame, s.cfg.SensorFrame, stamp)
	if err != nil {
		s.logger.Warn("odometry automatically reset to latest computed pose")
		s.estimator.Reset(s.estimator.Pose())
	} else {
		s.logger.Warnw("odometry automatically reset to latest pose from external transform source",
			"from", s.cfg.OdomFrame,
			"to", s.cfg.SensorFrame)
		s.estimator.Reset(fused)
	}
	s.recovery.rearm()
}

func (s *Session) recordNode(pose spatialmath.Pose, stamp time.Time) {
	s.nextNodeID++
	s.graph.Add(posegraph.Node{ID: s.nextNodeID, Pose: pose, Stamp: stamp})
}

// Reset clears the session pose to identity and flushes undelivered output.
// It is safe to call at any time, including between observations.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info("odometry reset")
	s.estimator.Reset(spatialmath.NewZeroPose())
	s.recovery.rearm()
	s.lastStamp = time.Time{}
	s.graph.Clear()
	s.sink.Flush(ctx)
}

// ResetToPose re-anchors the session at the given pose, angles in radians.
func (s *Session) ResetToPose(ctx context.Context, x, y, z, roll, pitch, yaw float64) {
	pose := spatialmath.NewPose(
		r3.Vector{X: x, Y: y, Z: z},
		&spatialmath.EulerAngles{Roll: roll, Pitch: pitch, Yaw: yaw},
	)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Infow("odometry reset to pose", "pose", spatialmath.PoseToProtobuf(pose))
	s.estimator.Reset(pose)
	s.recovery.rearm()
	// the recorded history anchors to the old pose and is meaningless across a
	// re-anchor
	s.lastStamp = time.Time{}
	s.graph.Clear()
	s.sink.Flush(ctx)
}

// Pause suspends observation processing. Pausing an already paused session is
// reported and otherwise a no-op.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		s.logger.Warn("odometry already paused")
		return
	}
	s.paused = true
	s.logger.Info("odometry paused")
}

// Resume reenables observation processing. Resuming a running session is
// reported and otherwise a no-op.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		s.logger.Warn("odometry already running")
		return
	}
	s.paused = false
	s.logger.Info("odometry resumed")
}

// Paused reports whether the session is paused.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// CurrentPose returns the session's current pose estimate.
func (s *Session) CurrentPose() spatialmath.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.estimator.Pose()
}

// State returns a snapshot of the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		CurrentPose:         s.estimator.Pose(),
		Paused:              s.paused,
		ResetCountdownLimit: s.recovery.limit,
		ResetRemaining:      s.recovery.remaining,
		LastProcessed:       s.lastStamp,
	}
}

// NearbyPoses returns the ids and poses of up to limit recently recorded
// poses within radius meters of the given point, most recent first. A radius
// at or below zero uses the configured default. A nonzero id centers the
// query on that node instead; with a zero point and zero id, the
// neighborhood of the latest node is returned. A nonpositive limit returns
// all matches.
func (s *Session) NearbyPoses(point r3.Vector, id int, radius float64, limit int) ([]int, []spatialmath.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if radius <= 0 {
		radius = s.cfg.queryRadius()
	}
	center := point
	if id != 0 {
		node, ok := s.graph.Node(id)
		if !ok {
			return nil, nil
		}
		center = node.Pose.Point()
	} else if point.X == 0 && point.Y == 0 && point.Z == 0 {
		node, ok := s.graph.Latest()
		if !ok {
			return nil, nil
		}
		center = node.Pose.Point()
	}
	nodes := s.graph.Near(center, radius, limit)
	ids := make([]int, 0, len(nodes))
	poses := make([]spatialmath.Pose, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
		poses = append(poses, n.Pose)
	}
	return ids, poses
}
