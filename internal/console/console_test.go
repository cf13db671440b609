package console

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/loykin/craftd/internal/logger"
)

func TestMultiplexerPreservesPerStreamOrder(t *testing.T) {
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()

	var mu sync.Mutex
	byStream := map[Stream][]string{}
	m := New(SinkFunc(func(r Record) {
		mu.Lock()
		byStream[r.Stream] = append(byStream[r.Stream], r.Line)
		mu.Unlock()
	}))
	m.Attach(outR, errR)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, _ = io.WriteString(outW, "out line\n")
		}
		_ = outW.Close()
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, _ = io.WriteString(errW, "err line\n")
		}
		_ = errW.Close()
	}()
	wg.Wait()
	m.Wait()

	if len(byStream[Stdout]) != 50 || len(byStream[Stderr]) != 50 {
		t.Fatalf("got %d/%d lines", len(byStream[Stdout]), len(byStream[Stderr]))
	}
}

func TestMultiplexerEOFOnOneStreamKeepsOther(t *testing.T) {
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()

	got := make(chan Record, 4)
	m := New(SinkFunc(func(r Record) { got <- r }))
	m.Attach(outR, errR)

	_ = outW.Close() // stdout dies first

	_, _ = io.WriteString(errW, "still here\n")
	select {
	case r := <-got:
		if r.Stream != Stderr || r.Line != "still here" {
			t.Errorf("record=%+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stderr reader stopped after stdout EOF")
	}
	_ = errW.Close()
	m.Wait()
}

func TestRecorderStripsForFileAndTagsForDisplay(t *testing.T) {
	var file bytes.Buffer
	var spans []logger.Span
	rec := NewRecorder(&file, func(_ Record, s []logger.Span) { spans = s })

	rec.Consume(Record{
		Time:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Stream: Stdout,
		Line:   "\x1b[32mDone\x1b[0m!",
	})

	want := "[2026-01-02 03:04:05] [stdout] Done!\n"
	if file.String() != want {
		t.Errorf("file=%q want %q", file.String(), want)
	}
	if len(spans) != 2 || spans[0].Tag != logger.TagGreen || spans[0].Text != "Done" {
		t.Errorf("spans=%+v", spans)
	}
}

func TestRecorderNilFileAndDisplay(t *testing.T) {
	rec := NewRecorder(nil, nil)
	rec.Consume(Record{Time: time.Now(), Stream: Stderr, Line: "ok"})
}

func TestScannerHandlesLongLines(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	var lines []string
	m := New(SinkFunc(func(r Record) { lines = append(lines, r.Line) }))
	m.Attach(strings.NewReader(long+"\n"), nil)
	m.Wait()
	if len(lines) != 1 || len(lines[0]) != len(long) {
		t.Fatalf("long line not scanned: %d lines", len(lines))
	}
}
