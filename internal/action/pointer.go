package action

import "math"

// PointerConfig tunes relative cursor motion. Positions are normalized
// image coordinates.
type PointerConfig struct {
	Speed        float64 `yaml:"mouse_speed"`
	Deadzone     float64 `yaml:"deadzone"`
	Smoothing    float64 `yaml:"delta_smoothing"`
	ScreenWidth  int     `yaml:"screen_width"`
	ScreenHeight int     `yaml:"screen_height"`
}

// DefaultPointerConfig returns the tuned defaults.
func DefaultPointerConfig() PointerConfig {
	return PointerConfig{
		Speed:        2.0,
		Deadzone:     0.003,
		Smoothing:    0.5,
		ScreenWidth:  1920,
		ScreenHeight: 1080,
	}
}

// pointer turns successive fingertip positions into cursor deltas, like a
// touchpad: lifting (reset) and touching again does not jump the cursor.
type pointer struct {
	cfg PointerConfig

	hand     string
	primed   bool
	lastX    float64
	lastY    float64
	smoothDX float64
	smoothDY float64
}

func (p *pointer) reset() {
	cfg := p.cfg
	*p = pointer{cfg: cfg}
}

// move records a position for hand and returns the pixel delta to apply.
// The first position after a reset or hand change only primes the tracker.
func (p *pointer) move(hand string, x, y float64) (dx, dy int, ok bool) {
	if !p.primed || p.hand != hand {
		p.reset()
		p.hand = hand
		p.primed = true
		p.lastX, p.lastY = x, y
		return 0, 0, false
	}

	rawX, rawY := x-p.lastX, y-p.lastY
	p.lastX, p.lastY = x, y

	a := p.cfg.Smoothing
	p.smoothDX = a*p.smoothDX + (1-a)*rawX
	p.smoothDY = a*p.smoothDY + (1-a)*rawY

	if math.Abs(p.smoothDX) < p.cfg.Deadzone && math.Abs(p.smoothDY) < p.cfg.Deadzone {
		return 0, 0, false
	}

	dx = int(p.smoothDX * float64(p.cfg.ScreenWidth) * p.cfg.Speed)
	dy = int(p.smoothDY * float64(p.cfg.ScreenHeight) * p.cfg.Speed)
	if dx == 0 && dy == 0 {
		return 0, 0, false
	}
	return dx, dy, true
}
