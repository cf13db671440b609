// Package console fans the managed server's output streams into a
// single ordered sink. It never decides process termination: a closed
// stream merely ends its reader, and the supervisor's monitor loop
// remains the sole authority on exit.
package console

import (
	"bufio"
	"io"
	"sync"
	"time"
)

// Stream tags which pipe a line arrived on.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Record is one line of server output.
type Record struct {
	Time   time.Time
	Stream Stream
	Line   string
}

// Sink consumes records from both streams. Implementations must be
// safe for concurrent use; the two readers call it from their own
// goroutines.
type Sink interface {
	Consume(Record)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Record)

func (f SinkFunc) Consume(r Record) { f(r) }

// Multiplexer runs one reader goroutine per stream and forwards each
// scanned line to the sink.
type Multiplexer struct {
	sink Sink
	wg   sync.WaitGroup
}

func New(sink Sink) *Multiplexer {
	return &Multiplexer{sink: sink}
}

// Attach starts a reader for each non-nil stream. It may be called
// once per process spawn; Wait must be called before reattaching.
func (m *Multiplexer) Attach(stdout, stderr io.Reader) {
	if stdout != nil {
		m.wg.Add(1)
		go m.scan(stdout, Stdout)
	}
	if stderr != nil {
		m.wg.Add(1)
		go m.scan(stderr, Stderr)
	}
}

// Wait blocks until both readers hit EOF. The supervisor calls this
// after the process exits to drain remaining output.
func (m *Multiplexer) Wait() {
	m.wg.Wait()
}

func (m *Multiplexer) scan(r io.Reader, stream Stream) {
	defer m.wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		m.sink.Consume(Record{Time: time.Now(), Stream: stream, Line: sc.Text()})
	}
	// Scanner errors (including a killed pipe) end this reader only.
}
