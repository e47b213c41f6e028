package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokens_PreserveText(t *testing.T) {
	text := "I found the following constraints:\n\n• age:  between 1 and 2\n"
	tokens := Tokens(text)
	assert.Equal(t, text, strings.Join(tokens, ""))
	assert.Equal(t, []string{"a", " ", "b"}, Tokens("a b"))
	assert.Empty(t, Tokens(""))
}

func collect(ch <-chan string) string {
	var b strings.Builder
	for tok := range ch {
		b.WriteString(tok)
	}
	return b.String()
}

func TestStreamer_Completes(t *testing.T) {
	s := NewStreamer(time.Millisecond)
	assert.Equal(t, "hello  there", collect(s.Begin(context.Background(), "hello  there")))
}

func TestStreamer_BeginCancelsPrevious(t *testing.T) {
	s := NewStreamer(20 * time.Millisecond)
	first := s.Begin(context.Background(), strings.Repeat("word ", 50))

	<-first // one token arrives
	second := s.Begin(context.Background(), "next reply")

	rest := collect(first)
	assert.Less(t, len(rest), len(strings.Repeat("word ", 50)), "superseded stream must stop early")
	assert.Equal(t, "next reply", collect(second))
}

func TestStreamer_Stop(t *testing.T) {
	s := NewStreamer(10 * time.Millisecond)
	ch := s.Begin(context.Background(), strings.Repeat("x ", 100))
	s.Stop()

	done := make(chan struct{})
	go func() {
		collect(ch)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not close after Stop")
	}
}
