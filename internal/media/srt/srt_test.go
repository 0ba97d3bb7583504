package srt

import (
	"strings"
	"testing"
)

const sample = `1
00:00:01,000 --> 00:00:03,500
Hello world.

2
00:00:04,000 --> 00:00:06,250
<i>Second</i> line
continued here.
`

func TestParse(t *testing.T) {
	cues := Parse(sample)
	if len(cues) != 2 {
		t.Fatalf("got %d cues, want 2", len(cues))
	}
	if cues[0].StartMS != 1000 || cues[0].EndMS != 3500 {
		t.Fatalf("cue 1 timing = %d..%d", cues[0].StartMS, cues[0].EndMS)
	}
	if cues[0].Text != "Hello world." {
		t.Fatalf("cue 1 text = %q", cues[0].Text)
	}
	if cues[1].Text != "Second line\ncontinued here." {
		t.Fatalf("tags not stripped or lines not joined: %q", cues[1].Text)
	}
}

func TestParseStripsByteOrderMark(t *testing.T) {
	cues := Parse("\uFEFF" + sample)
	if len(cues) != 2 {
		t.Fatalf("got %d cues, want 2 from a BOM-prefixed document", len(cues))
	}
	if cues[0].StartMS != 1000 {
		t.Fatalf("cue 1 start = %d, want 1000", cues[0].StartMS)
	}
}

func TestParseSkipsMalformedBlocks(t *testing.T) {
	doc := "1\nnot a timing line\ngarbage\n\n" + sample
	cues := Parse(doc)
	if len(cues) != 2 {
		t.Fatalf("got %d cues, want 2 after skipping bad block", len(cues))
	}
	if cues[0].Index != 1 || cues[1].Index != 2 {
		t.Fatal("parsed cues must be renumbered sequentially")
	}
}

func TestFormatTimestamp(t *testing.T) {
	cases := map[int64]string{
		0:        "00:00:00,000",
		500:      "00:00:00,500",
		5500:     "00:00:05,500",
		3661007:  "01:01:01,007",
		86399999: "23:59:59,999",
	}
	for ms, want := range cases {
		if got := FormatTimestamp(ms); got != want {
			t.Errorf("FormatTimestamp(%d) = %q, want %q", ms, got, want)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	cues := Parse(sample)
	again := Parse(Format(cues))
	if len(again) != len(cues) {
		t.Fatalf("round trip cue count %d, want %d", len(again), len(cues))
	}
	for i := range cues {
		if again[i] != cues[i] {
			t.Fatalf("cue %d changed: %+v vs %+v", i, again[i], cues[i])
		}
	}
}

func TestAssembleOffsets(t *testing.T) {
	// First chunk is 5.0s of audio whose last cue ends well before that;
	// the second chunk's first cue at 0.5s must land at 5.5s.
	a := Fragment{
		DurationMS: 5000,
		Cues: []Cue{
			{Index: 1, StartMS: 0, EndMS: 2000, Text: "a"},
			{Index: 2, StartMS: 2500, EndMS: 3900, Text: "b"},
		},
	}
	b := Fragment{
		DurationMS: 4000,
		Cues: []Cue{
			{Index: 1, StartMS: 500, EndMS: 1500, Text: "c"},
		},
	}
	out := Assemble([]Fragment{a, b})
	if len(out) != 3 {
		t.Fatalf("got %d cues, want 3", len(out))
	}
	if out[2].StartMS != 5500 || out[2].EndMS != 6500 {
		t.Fatalf("third cue = %d..%d, want 5500..6500", out[2].StartMS, out[2].EndMS)
	}
	for i, c := range out {
		if c.Index != i+1 {
			t.Fatalf("cue %d has index %d", i, c.Index)
		}
	}
}

func TestAssembleEmptyFragmentAdvancesOffset(t *testing.T) {
	frags := []Fragment{
		{DurationMS: 3000},
		{DurationMS: 2000, Cues: []Cue{{Index: 1, StartMS: 100, EndMS: 900, Text: "x"}}},
	}
	out := Assemble(frags)
	if len(out) != 1 {
		t.Fatalf("got %d cues, want 1", len(out))
	}
	if out[0].StartMS != 3100 {
		t.Fatalf("cue start = %d, want 3100", out[0].StartMS)
	}
	if out[0].Index != 1 {
		t.Fatalf("index = %d, want 1", out[0].Index)
	}
}

func TestFormatOutputShape(t *testing.T) {
	cues := []Cue{{Index: 1, StartMS: 0, EndMS: 1000, Text: "hi"}}
	got := Format(cues)
	want := "1\n00:00:00,000 --> 00:00:01,000\nhi\n"
	if got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
	if strings.Contains(got, "\r") {
		t.Fatal("output must not contain carriage returns")
	}
}
