package logger

import (
	"strings"
)

// Tag names the semantic color of a span of server output.
type Tag string

const (
	TagReset  Tag = "reset"
	TagRed    Tag = "red"
	TagGreen  Tag = "green"
	TagYellow Tag = "yellow"
	TagCyan   Tag = "cyan"
)

var sgrTags = map[string]Tag{
	"0":  TagReset,
	"31": TagRed,
	"91": TagRed,
	"32": TagGreen,
	"92": TagGreen,
	"33": TagYellow,
	"93": TagYellow,
	"36": TagCyan,
	"96": TagCyan,
}

// Span is a run of text carrying one semantic tag.
type Span struct {
	Tag  Tag
	Text string
}

// Tagger translates SGR escape sequences in server output into
// semantic tags for live display. It is a small state machine: the
// current tag persists across lines until an escape changes it, and
// unrecognized codes leave it unchanged.
type Tagger struct {
	current Tag
}

func NewTagger() *Tagger {
	return &Tagger{current: TagReset}
}

// Current returns the tag in effect after the last Split call.
func (t *Tagger) Current() Tag {
	return t.current
}

// Split breaks line into tagged spans, consuming any escape sequences.
// Empty spans are dropped; a line with no escapes yields one span.
func (t *Tagger) Split(line string) []Span {
	var spans []Span
	for {
		loc := ansiRe.FindStringIndex(line)
		if loc == nil {
			break
		}
		if loc[0] > 0 {
			spans = append(spans, Span{Tag: t.current, Text: line[:loc[0]]})
		}
		t.apply(line[loc[0]:loc[1]])
		line = line[loc[1]:]
	}
	if line != "" || spans == nil {
		spans = append(spans, Span{Tag: t.current, Text: line})
	}
	return spans
}

// apply updates the current tag from one "\x1b[...m" sequence. A
// sequence may carry several parameters; each is applied in order.
func (t *Tagger) apply(seq string) {
	params := strings.TrimSuffix(strings.TrimPrefix(seq, "\x1b["), "m")
	if params == "" {
		t.current = TagReset
		return
	}
	for _, p := range strings.Split(params, ";") {
		if tag, ok := sgrTags[p]; ok {
			t.current = tag
		}
	}
}
