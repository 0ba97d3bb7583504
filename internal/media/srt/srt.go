// Package srt parses, formats and reassembles SubRip subtitle tracks.
// Timestamps are integer milliseconds end to end.
package srt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Cue is one subtitle entry.
type Cue struct {
	Index   int
	StartMS int64
	EndMS   int64
	Text    string
}

var (
	timeLineRE = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)
	tagRE      = regexp.MustCompile(`<[^>]+>`)
)

// FormatTimestamp renders ms as HH:MM:SS,mmm.
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// Format renders cues as an SRT document. Indices are taken from the cues
// as given; use Renumber first if they need to be sequential.
func Format(cues []Cue) string {
	var b strings.Builder
	for i, c := range cues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n",
			c.Index, FormatTimestamp(c.StartMS), FormatTimestamp(c.EndMS), c.Text)
	}
	return b.String()
}

// Parse reads an SRT document. Markup tags inside cue text are stripped;
// blocks with malformed timing lines are skipped rather than failing the
// whole track.
func Parse(data string) []Cue {
	data = strings.ReplaceAll(data, "\r\n", "\n")
	data = strings.TrimPrefix(data, "\uFEFF")
	blocks := strings.Split(data, "\n\n")

	var cues []Cue
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			continue
		}
		// Index line is optional in the wild; timing may be first.
		timing := 0
		if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err == nil {
			timing = 1
		}
		if timing >= len(lines) {
			continue
		}
		m := timeLineRE.FindStringSubmatch(lines[timing])
		if m == nil {
			continue
		}
		start := tsToMS(m[1], m[2], m[3], m[4])
		end := tsToMS(m[5], m[6], m[7], m[8])
		text := strings.TrimSpace(strings.Join(lines[timing+1:], "\n"))
		text = tagRE.ReplaceAllString(text, "")
		cues = append(cues, Cue{
			Index:   len(cues) + 1,
			StartMS: start,
			EndMS:   end,
			Text:    text,
		})
	}
	return cues
}

func tsToMS(h, m, s, ms string) int64 {
	hh, _ := strconv.ParseInt(h, 10, 64)
	mm, _ := strconv.ParseInt(m, 10, 64)
	ss, _ := strconv.ParseInt(s, 10, 64)
	mss, _ := strconv.ParseInt(ms, 10, 64)
	return hh*3600000 + mm*60000 + ss*1000 + mss
}

// Renumber rewrites cue indices to 1..n in place.
func Renumber(cues []Cue) {
	for i := range cues {
		cues[i].Index = i + 1
	}
}

// Fragment is the transcription of one audio chunk plus the chunk's audio
// duration. The duration, not the last cue end, positions the next
// fragment; a chunk may trail off in silence past its final cue, and a
// fragment with no cues at all still occupies its span of the timeline.
type Fragment struct {
	Cues       []Cue
	DurationMS int64
}

// Assemble shifts each fragment's cues by the running offset of all audio
// before it and renumbers globally.
func Assemble(fragments []Fragment) []Cue {
	var out []Cue
	var offset int64
	for _, f := range fragments {
		for _, c := range f.Cues {
			c.StartMS += offset
			c.EndMS += offset
			out = append(out, c)
		}
		offset += f.DurationMS
	}
	Renumber(out)
	return out
}
