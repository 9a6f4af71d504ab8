package odometry

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"
)

// ErrTransformUnavailable is returned when the transform between two frames
// cannot be resolved at the requested time.
var ErrTransformUnavailable = errors.New("transform unavailable")

// A TransformSource resolves the rigid transform between two named coordinate
// frames at a given time. The zero time requests the latest available
// transform.
type TransformSource interface {
	Transform(ctx context.Context, from, to string, at time.Time) (spatialmath.Pose, error)
}

const transformPollInterval = 10 * time.Millisecond

// waitingTransformSource retries unavailable lookups until a deadline, then
// degrades to ErrTransformUnavailable. Lookups at the zero time are not
// retried; there is nothing to wait for without a stamp.
type waitingTransformSource struct {
	src     TransformSource
	timeout time.Duration
	clock   clock.Clock
}

// NewWaitingTransformSource wraps src so that unavailable lookups are retried
// for up to timeout before giving up. A nonpositive timeout returns src
// unchanged; a nil clk uses the wall clock.
func NewWaitingTransformSource(src TransformSource, timeout time.Duration, clk clock.Clock) TransformSource {
	if timeout <= 0 {
		return src
	}
	if clk == nil {
		clk = clock.New()
	}
	return &waitingTransformSource{src: src, timeout: timeout, clock: clk}
}

func (w *waitingTransformSource) Transform(
	ctx context.Context,
	from, to string,
	at time.Time,
) (spatialmath.Pose, error) {
	deadline := w.clock.Now().Add(w.timeout)
	for {
		pose, err := w.src.Transform(ctx, from, to, at)
		if err == nil {
			return pose, nil
		}
		if !errors.Is(err, ErrTransformUnavailable) {
			return nil, err
		}
		if at.IsZero() || ctx.Err() != nil {
			return nil, ErrTransformUnavailable
		}
		if w.clock.Now().Add(transformPollInterval).After(deadline) {
			return nil, ErrTransformUnavailable
		}
		w.clock.Sleep(transformPollInterval)
	}
}
