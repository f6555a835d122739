package history

import (
	"sync"
	"time"

	"github.com/wondertwin-ai/ecoscan/internal/offers"
)

const (
	// DefaultProgressionPoints is how many samples Last returns by default.
	DefaultProgressionPoints = 5
	defaultTimelineCapacity  = 100
	startLabel               = "Start"
)

// Clock supplies sample timestamps. *store.Clock satisfies it.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Sample is one point on the progression chart.
type Sample struct {
	Label  string  `json:"label"`
	Points int     `json:"points"`
	Carbon float64 `json:"carbon"`
}

// Timeline accumulates progression samples from observed store states. It
// always begins with a "Start" sample at zero.
type Timeline struct {
	mu         sync.Mutex
	clock      Clock
	capacity   int
	samples    []Sample
	lastPoints int
	lastCarbon float64
}

// NewTimeline creates a timeline keeping at most capacity samples (including
// the start sample). A nil clock uses wall time.
func NewTimeline(clock Clock, capacity int) *Timeline {
	if clock == nil {
		clock = wallClock{}
	}
	if capacity < 2 {
		capacity = defaultTimelineCapacity
	}
	return &Timeline{clock: clock, capacity: capacity, samples: []Sample{startSample()}}
}

func startSample() Sample {
	return Sample{Label: startLabel}
}

// Observe records st when the user has points and either total moved since the
// previous observation. A decrease in either total means the store was reset.
// Observe has the offers.Observer signature.
func (t *Timeline) Observe(st offers.AppState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st.TotalPoints < t.lastPoints || st.CarbonScore < t.lastCarbon {
		t.resetLocked()
	}
	changed := st.TotalPoints != t.lastPoints || st.CarbonScore != t.lastCarbon
	t.lastPoints, t.lastCarbon = st.TotalPoints, st.CarbonScore
	if st.TotalPoints <= 0 || !changed {
		return
	}

	t.samples = append(t.samples, Sample{
		Label:  t.clock.Now().Format("15:04"),
		Points: st.TotalPoints,
		Carbon: st.CarbonScore,
	})
	if over := len(t.samples) - t.capacity; over > 0 {
		t.samples = append(t.samples[:0:0], t.samples[over:]...)
	}
}

// Last returns the newest n samples in chronological order. A non-positive n
// uses DefaultProgressionPoints.
func (t *Timeline) Last(n int) []Sample {
	if n <= 0 {
		n = DefaultProgressionPoints
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > len(t.samples) {
		n = len(t.samples)
	}
	out := make([]Sample, n)
	copy(out, t.samples[len(t.samples)-n:])
	return out
}

// Len returns the number of retained samples.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples)
}

// Reset returns the timeline to the single start sample.
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

func (t *Timeline) resetLocked() {
	t.samples = []Sample{startSample()}
	t.lastPoints, t.lastCarbon = 0, 0
}
