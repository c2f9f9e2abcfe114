package tracks

import (
	"math"
)

// TrackState is the lifecycle state of a track.
type TrackState string

const (
	TrackCandidate TrackState = "candidate" // awaiting M-of-N confirmation
	TrackConfirmed TrackState = "confirmed" // stable, reported downstream
	TrackLost      TrackState = "lost"      // terminal, reported once then dropped
)

// TTCCategory buckets time-to-collision by the configured thresholds.
type TTCCategory string

const (
	TTCNone     TTCCategory = "none"
	TTCWarning  TTCCategory = "warning"
	TTCCritical TTCCategory = "critical"
)

// Track is one persistent multi-model object estimate. IDs are
// monotonic and never reused.
type Track struct {
	ID    int64
	State TrackState
	Age   int // cycles since creation

	// Hits counts total successful associations; MissStreak counts
	// consecutive cycles without one.
	Hits       int
	MissStreak int

	// hitWindow records match/no-match per cycle for the sliding M-of-N
	// confirmation window, newest last.
	hitWindow []bool

	models []MotionModel
	probs  []float64

	// Fused output, probability-weighted across the model bank.
	X, Y   float64
	VX, VY float64

	// TTC is the time to collision in seconds from the most probable
	// model, +Inf when the object is not closing.
	TTC         float64
	TTCCategory TTCCategory

	// confirmedEver latches confirmation so a lost track still reports
	// as having been confirmed.
	confirmedEver bool
}

// IsConfirmed reports whether the track ever reached confirmation. It
// stays true after the track is lost.
func (t *Track) IsConfirmed() bool { return t.State == TrackConfirmed || t.confirmedEver }

// IsLost reports the terminal state.
func (t *Track) IsLost() bool { return t.State == TrackLost }

// ModelProbabilities returns a copy of the per-model mixing
// probabilities, aligned with Models().
func (t *Track) ModelProbabilities() []float64 {
	out := make([]float64, len(t.probs))
	copy(out, t.probs)
	return out
}

// Models exposes the model bank, mainly for export.
func (t *Track) Models() []MotionModel { return t.models }

// predict advances every model by dt and refreshes the fused output.
func (t *Track) predict(dt float64) {
	for _, m := range t.models {
		m.Predict(dt)
	}
	t.fuse()
}

// correct applies the measurement to every model, then remixes the
// model probabilities by transition-weighted likelihood.
func (t *Track) correct(zx, zy float64, stayProb float64) {
	likelihoods := make([]float64, len(t.models))
	for i, m := range t.models {
		likelihoods[i] = m.Likelihood(zx, zy)
		m.Update(zx, zy)
	}
	t.remix(likelihoods, stayProb)
	t.fuse()
}

// remix folds the Markov model-transition prior into the current
// probabilities and scales by measurement likelihood. Degenerate
// all-zero likelihoods keep the prior mix.
func (t *Track) remix(likelihoods []float64, stayProb float64) {
	n := len(t.probs)
	if n < 2 {
		if n == 1 {
			t.probs[0] = 1
		}
		return
	}
	switchProb := (1 - stayProb) / float64(n-1)

	mixed := make([]float64, n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			p := switchProb
			if i == j {
				p = stayProb
			}
			mixed[j] += p * t.probs[i]
		}
	}

	total := 0.0
	for j := range mixed {
		mixed[j] *= likelihoods[j]
		total += mixed[j]
	}
	if total <= 0 || math.IsNaN(total) {
		// No model explains the measurement; fall back to the
		// transition prior alone.
		total = 0
		for j := 0; j < n; j++ {
			mixed[j] = 0
			for i := 0; i < n; i++ {
				p := switchProb
				if i == j {
					p = stayProb
				}
				mixed[j] += p * t.probs[i]
			}
			total += mixed[j]
		}
	}
	for j := range mixed {
		t.probs[j] = mixed[j] / total
	}
}

// fuse computes the probability-weighted position and velocity.
func (t *Track) fuse() {
	t.X, t.Y, t.VX, t.VY = 0, 0, 0, 0
	for i, m := range t.models {
		x, y := m.Position()
		vx, vy := m.Velocity()
		w := t.probs[i]
		t.X += w * x
		t.Y += w * y
		t.VX += w * vx
		t.VY += w * vy
	}
}

// mostProbableModel returns the bank entry with the highest mixing
// probability.
func (t *Track) mostProbableModel() MotionModel {
	best := 0
	for i := range t.probs {
		if t.probs[i] > t.probs[best] {
			best = i
		}
	}
	return t.models[best]
}

// refreshTTC derives time-to-collision from the most probable model's
// range and closing speed.
func (t *Track) refreshTTC(criticalSecs, warningSecs float64) {
	m := t.mostProbableModel()
	x, y := m.Position()
	vx, vy := m.Velocity()

	r := math.Hypot(x, y)
	if r == 0 {
		t.TTC = 0
		t.TTCCategory = TTCCritical
		return
	}
	closing := -(vx*x + vy*y) / r
	if closing <= 0 {
		t.TTC = math.Inf(1)
		t.TTCCategory = TTCNone
		return
	}
	t.TTC = r / closing
	switch {
	case t.TTC <= criticalSecs:
		t.TTCCategory = TTCCritical
	case t.TTC <= warningSecs:
		t.TTCCategory = TTCWarning
	default:
		t.TTCCategory = TTCNone
	}
}

// recordHit appends a match to the sliding confirmation window.
func (t *Track) recordHit(window int) {
	t.Hits++
	t.MissStreak = 0
	t.pushWindow(true, window)
}

// recordMiss appends a no-match cycle.
func (t *Track) recordMiss(window int) {
	t.MissStreak++
	t.pushWindow(false, window)
}

func (t *Track) pushWindow(hit bool, window int) {
	t.hitWindow = append(t.hitWindow, hit)
	if len(t.hitWindow) > window {
		t.hitWindow = t.hitWindow[len(t.hitWindow)-window:]
	}
}

// windowHits counts matches inside the sliding window.
func (t *Track) windowHits() int {
	n := 0
	for _, h := range t.hitWindow {
		if h {
			n++
		}
	}
	return n
}
