package jsonrpc

import "io"

const hexDigits = "0123456789abcdef"

// Escaper is a forward-only sink that JSON-escapes text as it is written.
// Producers emit raw bytes; the escaper quotes double quotes, backslashes,
// and control characters on the fly so the output can sit inside an already
// open JSON string literal.
type Escaper struct {
	w io.Writer
}

// NewEscaper wraps w. The caller owns the surrounding quotes.
func NewEscaper(w io.Writer) *Escaper {
	return &Escaper{w: w}
}

// Write escapes p into the underlying writer. The returned count is len(p)
// on success so the escaper satisfies io.Writer semantics for producers
// that track progress.
func (e *Escaper) Write(p []byte) (int, error) {
	start := 0
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		if start < i {
			if _, err := e.w.Write(p[start:i]); err != nil {
				return start, err
			}
		}
		if err := e.escapeByte(c); err != nil {
			return i, err
		}
		start = i + 1
	}
	if start < len(p) {
		if _, err := e.w.Write(p[start:]); err != nil {
			return start, err
		}
	}
	return len(p), nil
}

// WriteString escapes s into the underlying writer.
func (e *Escaper) WriteString(s string) (int, error) {
	// Escaping never inspects UTF-8 boundaries; multibyte runes pass through
	// untouched because all escaped bytes are below 0x80.
	return e.Write([]byte(s))
}

func (e *Escaper) escapeByte(c byte) error {
	var seq []byte
	switch c {
	case '"':
		seq = []byte(`\"`)
	case '\\':
		seq = []byte(`\\`)
	case '\n':
		seq = []byte(`\n`)
	case '\r':
		seq = []byte(`\r`)
	case '\t':
		seq = []byte(`\t`)
	default:
		seq = []byte{'\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf]}
	}
	_, err := e.w.Write(seq)
	return err
}

// TextStream produces raw text into the escaping sink. It is invoked exactly
// once per response, is not restartable, and cannot be cancelled; an error
// return leaves whatever partial text was already emitted in the response.
type TextStream func(w io.Writer) error
