package ramp

// Linear advances a value toward a target at a fixed total duration, driven by
// caller ticks. It is stateless between reconfigurations and never overshoots.
type Linear struct {
	from       float64
	to         float64
	durationMs int64
	startMs    int64
	active     bool
}

// Start begins a ramp from cur to target over durationMs, anchored at nowMs.
// durationMs <= 0 snaps immediately.
func (r *Linear) Start(cur, target float64, durationMs, nowMs int64) {
	if durationMs <= 0 {
		r.from, r.to = target, target
		r.durationMs = 0
		r.active = false
		return
	}
	r.from = cur
	r.to = target
	r.durationMs = durationMs
	r.startMs = nowMs
	r.active = true
}

// Value returns the ramp value at nowMs. Once the duration has elapsed the
// ramp reports (target, false) and stays there.
func (r *Linear) Value(nowMs int64) (float64, bool) {
	if !r.active {
		return r.to, false
	}
	elapsed := nowMs - r.startMs
	if elapsed >= r.durationMs {
		r.active = false
		return r.to, false
	}
	frac := float64(elapsed) / float64(r.durationMs)
	return r.from + (r.to-r.from)*frac, true
}

// Target returns the ramp end value.
func (r *Linear) Target() float64 { return r.to }

// Active reports whether the ramp is still progressing.
func (r *Linear) Active() bool { return r.active }
