package gesture

import "sort"

// SmootherConfig controls temporal smoothing.
type SmootherConfig struct {
	Alpha        float64 `yaml:"ema_alpha"`
	MedianWindow int     `yaml:"median_window"`
	HistorySize  int     `yaml:"history_size"`
}

// DefaultSmootherConfig returns the tuned defaults.
func DefaultSmootherConfig() SmootherConfig {
	return SmootherConfig{
		Alpha:        0.3,
		MedianWindow: 5,
		HistorySize:  10,
	}
}

// SmoothingState is the per-hand filter state. The zero value is ready to use.
type SmoothingState struct {
	ema         ScoreVector
	initialized bool

	// history is a ring of the most recent raw vectors.
	history []ScoreVector
	next    int
	count   int
}

// EMA returns the current exponential moving average.
func (st *SmoothingState) EMA() ScoreVector {
	return st.ema
}

// Len returns how many raw vectors are retained.
func (st *SmoothingState) Len() int {
	return st.count
}

// Reset clears the state.
func (st *SmoothingState) Reset() {
	*st = SmoothingState{}
}

// recent returns the last n raw vectors, oldest first.
func (st *SmoothingState) recent(n int) []ScoreVector {
	if n > st.count {
		n = st.count
	}
	out := make([]ScoreVector, 0, n)
	size := len(st.history)
	for i := n; i > 0; i-- {
		out = append(out, st.history[(st.next-i+size)%size])
	}
	return out
}

func (st *SmoothingState) push(v ScoreVector, capacity int) {
	if len(st.history) != capacity {
		st.history = make([]ScoreVector, capacity)
		st.next, st.count = 0, 0
	}
	st.history[st.next] = v
	st.next = (st.next + 1) % capacity
	if st.count < capacity {
		st.count++
	}
}

// Smoother blends an EMA with a sliding median. Until MedianWindow samples
// exist the EMA is returned; afterwards the per-gesture median of the most
// recent MedianWindow samples is.
type Smoother struct {
	config SmootherConfig
}

// NewSmoother creates a Smoother. A history shorter than the median window
// is widened to fit it.
func NewSmoother(config SmootherConfig) *Smoother {
	if config.MedianWindow < 1 {
		config.MedianWindow = 1
	}
	if config.HistorySize < config.MedianWindow {
		config.HistorySize = config.MedianWindow
	}
	return &Smoother{config: config}
}

// Smooth folds raw into st and returns the smoothed, normalized vector.
func (s *Smoother) Smooth(st *SmoothingState, raw ScoreVector) ScoreVector {
	if !st.initialized {
		st.ema = raw
		st.initialized = true
	} else {
		a := s.config.Alpha
		for g := range st.ema {
			st.ema[g] = a*raw[g] + (1-a)*st.ema[g]
		}
	}

	st.push(raw, s.config.HistorySize)

	if st.count < s.config.MedianWindow {
		return st.ema.Normalize()
	}
	return median(st.recent(s.config.MedianWindow)).Normalize()
}

func median(window []ScoreVector) ScoreVector {
	var out ScoreVector
	col := make([]float64, len(window))
	for g := range out {
		for i, v := range window {
			col[i] = v[g]
		}
		sort.Float64s(col)
		mid := len(col) / 2
		if len(col)%2 == 0 {
			out[g] = (col[mid-1] + col[mid]) / 2
		} else {
			out[g] = col[mid]
		}
	}
	return out
}
