package jsonrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// Writer serializes response envelopes onto the shared output stream. A
// mutex guards each full envelope write, terminator, and flush so background
// goroutines (session event delivery) can never interleave mid-record.
type Writer struct {
	mu     sync.Mutex
	out    *bufio.Writer
	logger *log.Logger
}

// NewWriter wraps out. The logger receives producer-side errors that occur
// after the envelope is partially committed.
func NewWriter(out io.Writer, logger *log.Logger) *Writer {
	return &Writer{out: bufio.NewWriter(out), logger: logger}
}

// WriteResult emits {"jsonrpc":"2.0","id":<id>,"result":<result>}.
func (w *Writer) WriteResult(id json.RawMessage, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	resp := Response{JSONRPC: "2.0", ID: id, Result: raw}
	return w.writeEnvelope(&resp)
}

// WriteError emits an error response with the given code and message.
func (w *Writer) WriteError(id json.RawMessage, code int, message string) error {
	resp := Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
	return w.writeEnvelope(&resp)
}

func (w *Writer) writeEnvelope(resp *Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(raw); err != nil {
		return err
	}
	if err := w.out.WriteByte('\n'); err != nil {
		return err
	}
	return w.out.Flush()
}

// WriteStreamedResult emits a result whose single large text field is
// produced lazily. prefix and suffix are raw JSON fragments surrounding the
// quoted text value; the stream runs inside the writer lock with its output
// escaped byte-by-byte. Once the prefix is written the envelope is committed:
// a stream error can only be logged, and the partial text stands.
func (w *Writer) WriteStreamedResult(id json.RawMessage, prefix, suffix string, stream TextStream) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.out, `{"jsonrpc":"2.0","id":%s,"result":%s"`, id, prefix); err != nil {
		return err
	}
	if err := stream(NewEscaper(w.out)); err != nil {
		w.logger.Error("text stream failed mid-response, keeping partial output", "err", err)
	}
	if _, err := fmt.Fprintf(w.out, `"%s}`, suffix); err != nil {
		return err
	}
	if err := w.out.WriteByte('\n'); err != nil {
		return err
	}
	return w.out.Flush()
}
