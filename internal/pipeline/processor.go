package pipeline

import (
	"fmt"
	"time"

	"github.com/ayusman/phantomhand/internal/capture"
	"github.com/ayusman/phantomhand/internal/debounce"
	"github.com/ayusman/phantomhand/internal/detector"
	"github.com/ayusman/phantomhand/internal/event"
	"github.com/ayusman/phantomhand/internal/gesture"
)

// HandResult is the per-hand part of a FrameResult.
type HandResult struct {
	ID         string                                  `json:"hand_id"`
	Handedness string                                  `json:"handedness"`
	Landmarks  [detector.NumLandmarks]detector.Point3D `json:"landmarks"`
	Candidate  gesture.Candidate                       `json:"candidate"`
	State      debounce.State                          `json:"state"`
	Extended   []string                                `json:"extended"`
	Cooling    bool                                    `json:"cooling,omitempty"`
}

// FrameResult summarizes one processed frame.
type FrameResult struct {
	FrameID     uint64        `json:"frame_id"`
	Timestamp   int64         `json:"timestamp"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Image       []byte        `json:"-"`
	Hands       []HandResult  `json:"hands"`
	Events      []event.Event `json:"-"`
	InferenceMs float64       `json:"inference_ms"`
}

// Processor runs detection, scoring, debouncing and slide recognition for
// one frame at a time. It is owned by a single goroutine.
type Processor struct {
	detector detector.Detector
	scorer   *gesture.Scorer
	machine  *debounce.Machine
	slides   *gesture.SlideDetector
}

// NewProcessor wires the per-frame chain.
func NewProcessor(det detector.Detector, scorer *gesture.Scorer, machine *debounce.Machine, slides *gesture.SlideDetector) *Processor {
	return &Processor{
		detector: det,
		scorer:   scorer,
		machine:  machine,
		slides:   slides,
	}
}

// Machine returns the debounce machine.
func (p *Processor) Machine() *debounce.Machine {
	return p.machine
}

// Process handles one frame. Detection errors are returned and leave all
// per-hand state untouched.
func (p *Processor) Process(frame *capture.Frame) (FrameResult, error) {
	start := time.Now()
	hands, err := p.detector.Detect(frame)
	if err != nil {
		return FrameResult{}, fmt.Errorf("detect frame %d: %w", frame.ID, err)
	}

	result := FrameResult{
		FrameID:     frame.ID,
		Timestamp:   frame.Timestamp,
		Width:       frame.Width,
		Height:      frame.Height,
		Image:       frame.Data,
		Hands:       make([]HandResult, 0, len(hands)),
		InferenceMs: float64(time.Since(start).Microseconds()) / 1000,
	}

	for i := range hands {
		hand := &hands[i]
		events, hr := p.processHand(hand, frame.Timestamp)
		result.Events = append(result.Events, events...)
		result.Hands = append(result.Hands, hr)
	}

	ids, events := p.machine.Prune(frame.Timestamp)
	for _, id := range ids {
		p.slides.Forget(id)
	}
	result.Events = append(result.Events, events...)

	return result, nil
}

func (p *Processor) processHand(hand *detector.HandRecord, ts int64) ([]event.Event, HandResult) {
	scored := p.scorer.Classify(hand)
	out := p.machine.Update(hand.ID, scored.Normalized, ts)
	for _, id := range out.Evicted {
		p.slides.Forget(id)
	}

	tip := hand.Points[detector.IndexTip]
	events := make([]event.Event, 0, len(out.Events)+1)
	for _, e := range out.Events {
		// Exits for evicted hands carry their own hand id and no position.
		if e.HandID == hand.ID {
			e = p.annotate(e, hand, tip)
		}
		events = append(events, e)
	}

	if !hand.Partial {
		if s, ok := p.slides.Update(hand.ID, hand.PalmCenter()); ok {
			e := event.New(event.Slide, s.Direction.Name(), hand.ID, ts)
			e.Confidence = 1.0
			e = p.annotate(e, hand, tip).
				WithMeta(event.MetaDirection, string(s.Direction)).
				WithMeta(event.MetaDistance, s.Distance)
			events = append(events, e)
		}
	}

	hr := HandResult{
		ID:         hand.ID,
		Handedness: hand.Handedness,
		Landmarks:  hand.Points,
		Candidate:  out.Candidate,
		State:      out.State,
		Cooling:    out.Cooling,
	}
	for f := detector.Thumb; f < detector.NumFingers; f++ {
		if scored.Extended[f] {
			hr.Extended = append(hr.Extended, f.String())
		}
	}
	return events, hr
}

func (p *Processor) annotate(e event.Event, hand *detector.HandRecord, tip detector.Point3D) event.Event {
	return e.WithMeta(event.MetaX, tip.X).
		WithMeta(event.MetaY, tip.Y).
		WithMeta(event.MetaHandedness, hand.Handedness)
}

// Reset forgets one hand, or every hand when handID is empty, and returns
// exits for gestures that were held.
func (p *Processor) Reset(handID string, ts int64) []event.Event {
	if handID == "" {
		p.slides.Reset()
		return p.machine.ResetAll(ts)
	}
	p.slides.Forget(handID)
	return p.machine.Reset(handID, ts)
}
