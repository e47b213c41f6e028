package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/quarry/pkg/domain"
)

// ContentRenderer transforms assistant content before it is printed (e.g. markdown to ANSI).
type ContentRenderer func(string) (string, error)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer
	Streamer *Streamer

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithTextHandlerStreamer prints assistant replies token by token.
// Streaming takes precedence over the renderer.
func WithTextHandlerStreamer(s *Streamer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Streamer = s
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// initPump starts the goroutine feeding Input, so a blocked read never blocks cancellation.
func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

func (h *TextHandler) pump() {
	defer close(h.inputChan)
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.inputChan <- inputResult{err: err}
			}
			return
		}
	}
}

func (h *TextHandler) Output(ctx context.Context, turn Turn) error {
	for _, msg := range turn.Messages {
		if msg.Role == domain.RoleUser {
			fmt.Fprintf(h.Writer, "» %s\n", msg.Content)
			continue
		}
		if h.Streamer != nil {
			for tok := range h.Streamer.Begin(ctx, msg.Content) {
				fmt.Fprint(h.Writer, tok)
			}
			fmt.Fprintln(h.Writer)
			continue
		}
		output := msg.Content
		if h.Renderer != nil {
			if rendered, err := h.Renderer(output); err == nil {
				output = rendered
			}
		}
		fmt.Fprintln(h.Writer, strings.TrimSpace(output))
	}
	if turn.Document != nil {
		data, err := json.MarshalIndent(turn.Document, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(h.Writer, string(data))
	}
	if len(turn.Suggestions) > 0 {
		fmt.Fprintf(h.Writer, "Try: %s\n", strings.Join(turn.Suggestions, " | "))
	}
	return nil
}

func (h *TextHandler) Input(ctx context.Context) (string, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			fmt.Fprint(h.Writer, "> ")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			clean, err := SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return clean, nil
		}
	}
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	fmt.Fprintf(h.Writer, "[System] %s\n", msg)
	return nil
}
