package sandbox

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// limitedWriter captures up to limit bytes of a stream and silently
// discards the remainder, matching the sandbox's documented output-capture
// ceiling.
type limitedWriter struct {
	buf   strings.Builder
	limit int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.limit <= 0 {
		return len(p), nil
	}
	if w.buf.Len() < w.limit {
		remaining := w.limit - w.buf.Len()
		if len(p) > remaining {
			p = p[:remaining]
		}
		w.buf.Write(p)
	}
	return len(p), nil
}

// decoded returns the captured bytes decoded as UTF-8 with invalid
// sequences replaced by U+FFFD, and truncated to limit bytes.
func (w *limitedWriter) decoded() string {
	out, _, err := transform.String(runes.ReplaceIllFormed(), w.buf.String())
	if err != nil {
		return w.buf.String()
	}
	for w.limit > 0 && len(out) > w.limit {
		_, size := utf8.DecodeLastRuneInString(out)
		out = out[:len(out)-size]
	}
	return out
}
