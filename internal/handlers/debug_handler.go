package handlers

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/alejoacosta74/shrimpy-stream/internal/logger"
	"github.com/alejoacosta74/shrimpy-stream/pkg/shrimpy"
)

// DebugHandler prints received frames as indented JSON.
type DebugHandler struct {
	mu     sync.Mutex
	out    io.Writer
	logger *logger.Logger
}

// NewDebugHandler writes to out, or stdout when out is nil.
func NewDebugHandler(out io.Writer) *DebugHandler {
	if out == nil {
		out = os.Stdout
	}
	return &DebugHandler{
		out:    out,
		logger: logger.WithField("component", "debug_handler"),
	}
}

// Handle prints the message in a pretty format
func (h *DebugHandler) Handle(msg shrimpy.Message) error {
	raw := msg.Raw
	if len(raw) == 0 {
		b, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("error encoding message: %w", err)
		}
		raw = b
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "    "); err != nil {
		return fmt.Errorf("error formatting JSON: %w", err)
	}
	pretty.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.out.Write(pretty.Bytes()); err != nil {
		return fmt.Errorf("error writing message: %w", err)
	}
	h.logger.Trace("Printed message")
	return nil
}
