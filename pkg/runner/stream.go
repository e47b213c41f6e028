package runner

import (
	"context"
	"regexp"
	"sync"
	"time"
)

// DefaultStreamDelay is the pause before each token of a streamed reply.
const DefaultStreamDelay = 15 * time.Millisecond

var tokenPattern = regexp.MustCompile(`\s+|\S+`)

// Tokens splits text into alternating word and whitespace runs.
// Joining the result yields text unchanged.
func Tokens(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}

// Streamer emits replies token by token. At most one stream is live:
// Begin cancels the previous one, so a fast follow-up turn never interleaves.
type Streamer struct {
	delay time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewStreamer creates a streamer with the given per-token delay.
func NewStreamer(delay time.Duration) *Streamer {
	if delay < 0 {
		delay = 0
	}
	return &Streamer{delay: delay}
}

// Begin starts streaming text and returns the token channel.
// The channel is closed when the text is exhausted, ctx is done or another Begin starts.
func (s *Streamer) Begin(ctx context.Context, text string) <-chan string {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	out := make(chan string)
	go func() {
		defer close(out)
		defer cancel()
		for _, tok := range Tokens(text) {
			if s.delay > 0 {
				timer := time.NewTimer(s.delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			select {
			case out <- tok:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Stop cancels the live stream, if any.
func (s *Streamer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
