package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/ayusman/phantomhand/internal/pipeline"
)

// Stream serves the most recent processed frame as MJPEG.
type Stream struct {
	mu     sync.Mutex
	frame  []byte
	seq    uint64
	notify chan struct{}
}

// NewStream creates an empty Stream.
func NewStream() *Stream {
	return &Stream{notify: make(chan struct{})}
}

// ObserveFrame records the frame's JPEG. It is a pipeline.FrameObserver.
// Frames without image data are ignored.
func (s *Stream) ObserveFrame(r pipeline.FrameResult) {
	if len(r.Image) == 0 {
		return
	}

	s.mu.Lock()
	s.frame = r.Image
	s.seq++
	close(s.notify)
	s.notify = make(chan struct{})
	s.mu.Unlock()
}

// Latest returns the last JPEG and its sequence number, which is 0 until a
// frame arrives.
func (s *Stream) Latest() ([]byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.seq
}

func (s *Stream) current() ([]byte, uint64, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.seq, s.notify
}

// ServeHTTP streams MJPEG frames until the client goes away.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	var last uint64
	for {
		frame, seq, next := s.current()
		if seq != last {
			last = seq
			if err := writePart(w, frame); err != nil {
				return
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-next:
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
