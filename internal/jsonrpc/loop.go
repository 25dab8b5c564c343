package jsonrpc

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"
)

const (
	// maxRecordSize bounds memory from a single record. Exceeding it is a
	// fatal framing error; the stream cannot be resynchronized reliably.
	maxRecordSize = 10 << 20
	// retainedScratch caps the record buffer capacity kept between
	// iterations, so one oversized record does not inflate steady-state
	// memory.
	retainedScratch = 32 << 10
)

// ErrRecordTooLarge terminates the loop when a single record exceeds the
// 10 MB framing cap.
var ErrRecordTooLarge = errors.New("jsonrpc: record exceeds size limit")

// Handler consumes one framed record. The record slice is only valid for
// the duration of the call; it aliases the loop's scratch region.
type Handler interface {
	HandleRecord(ctx context.Context, record []byte)
}

// Loop reads newline-delimited records from a stream and feeds them to a
// handler, strictly one at a time. Record N is fully handled before record
// N+1 is read.
type Loop struct {
	r       *bufio.Reader
	handler Handler
	logger  *log.Logger
	scratch []byte
}

// NewLoop builds a loop over in.
func NewLoop(in io.Reader, handler Handler, logger *log.Logger) *Loop {
	return &Loop{
		r:       bufio.NewReader(in),
		handler: handler,
		logger:  logger,
		scratch: make([]byte, 0, retainedScratch),
	}
}

// Run processes records until EOF, a fatal framing error, or context
// cancellation. A clean EOF returns nil. End-of-stream with buffered bytes
// and no trailing newline is treated as one final record. Cancellation is
// observed between records; a read already blocked on the stream is not
// interrupted.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := l.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				l.logger.Debug("input stream closed, stopping loop")
				return nil
			}
			return err
		}

		if len(record) > 0 {
			l.handler.HandleRecord(ctx, record)
		}

		l.resetScratch()
	}
}

// next accumulates bytes into the scratch region until a newline or EOF.
// The size cap applies to the record payload, so the delimiter is trimmed
// before the final comparison: a record of exactly maxRecordSize bytes plus
// its newline is still valid.
func (l *Loop) next() ([]byte, error) {
	l.scratch = l.scratch[:0]

	for {
		chunk, err := l.r.ReadSlice('\n')
		l.scratch = append(l.scratch, chunk...)

		switch {
		case err == nil:
			return l.finishRecord()
		case errors.Is(err, bufio.ErrBufferFull):
			// No delimiter yet; everything buffered is payload.
			if len(l.scratch) > maxRecordSize {
				return nil, ErrRecordTooLarge
			}
			continue
		case errors.Is(err, io.EOF):
			if len(l.scratch) == 0 {
				return nil, io.EOF
			}
			return l.finishRecord()
		default:
			return nil, err
		}
	}
}

func (l *Loop) finishRecord() ([]byte, error) {
	record := trimRecord(l.scratch)
	if len(record) > maxRecordSize {
		return nil, ErrRecordTooLarge
	}
	return record, nil
}

// resetScratch reclaims the record buffer, clamping retained capacity.
func (l *Loop) resetScratch() {
	if cap(l.scratch) > retainedScratch {
		l.scratch = make([]byte, 0, retainedScratch)
	}
}

func trimRecord(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
