package logger

import (
	"io"
	"regexp"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// StripANSI removes SGR escape sequences from s.
func StripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

// StripWriter removes SGR escape sequences before forwarding to the
// underlying writer. Sequences split across Write calls are not
// handled; callers write whole lines.
type StripWriter struct {
	w io.Writer
}

func NewStripWriter(w io.Writer) *StripWriter {
	return &StripWriter{w: w}
}

func (s *StripWriter) Write(p []byte) (int, error) {
	if _, err := s.w.Write(ansiRe.ReplaceAll(p, nil)); err != nil {
		return 0, err
	}
	// Report the original length so io.MultiWriter stays satisfied.
	return len(p), nil
}
