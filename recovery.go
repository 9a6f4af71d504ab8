package odometry

// recoveryPolicy is the consecutive-failure countdown deciding when a session
// must be re-anchored. A limit of zero disables automatic recovery entirely:
// failures are reported but never trigger a reset.
type recoveryPolicy struct {
	limit     int
	remaining int
}

func newRecoveryPolicy(limit int) *recoveryPolicy {
	if limit < 0 {
		limit = 0
	}
	return &recoveryPolicy{limit: limit, remaining: limit}
}

func (p *recoveryPolicy) enabled() bool { return p.limit > 0 }

// observeSuccess rearms the full countdown, regardless of how far it had run
// down.
func (p *recoveryPolicy) observeSuccess() { p.remaining = p.limit }

// observeFailure consumes one failure and reports whether the policy tripped.
// A tripped policy must be rearmed once the session has re-anchored.
func (p *recoveryPolicy) observeFailure() bool {
	if !p.enabled() || p.remaining == 0 {
		return false
	}
	p.remaining--
	return p.remaining == 0
}

func (p *recoveryPolicy) rearm() { p.remaining = p.limit }
