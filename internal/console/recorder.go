package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/loykin/craftd/internal/logger"
)

// DisplayFunc receives one record split into tagged spans for live
// rendering (terminal, log-tail API).
type DisplayFunc func(Record, []logger.Span)

// Recorder is the standard sink: it timestamps each record, persists
// it with escape sequences stripped, and forwards tagged spans to an
// optional live display. One mutex serializes both streams so the
// persisted log stays line-ordered.
type Recorder struct {
	mu      sync.Mutex
	file    io.Writer
	tagger  *logger.Tagger
	display DisplayFunc
}

// NewRecorder builds a Recorder. file may be nil (persistence off),
// display may be nil (no live view).
func NewRecorder(file io.Writer, display DisplayFunc) *Recorder {
	return &Recorder{file: file, tagger: logger.NewTagger(), display: display}
}

func (rc *Recorder) Consume(r Record) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.file != nil {
		line := fmt.Sprintf("[%s] [%s] %s\n",
			r.Time.Format("2006-01-02 15:04:05"), r.Stream, logger.StripANSI(r.Line))
		_, _ = io.WriteString(rc.file, line)
	}
	if rc.display != nil {
		rc.display(r, rc.tagger.Split(r.Line))
	}
}
