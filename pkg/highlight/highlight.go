// Package highlight turns match ranges in a rendered value into terminal
// cell rectangles and styled pieces. It holds no state of its own.
package highlight

import (
	"github.com/mattn/go-runewidth"
)

// Range is a half-open rune range [Start, End) of a rendered value.
type Range struct {
	Start, End int
	Active     bool
}

// Rect is a paintable run of cells on one line.
type Rect struct {
	Line, Col, Width int
	Active           bool
}

type cell struct {
	line, col, width int
}

// layout places every rune of text, wrapping at width cells (0 disables
// wrapping) and at newlines.
func layout(text string, width int) []cell {
	rs := []rune(text)
	cells := make([]cell, len(rs))
	line, col := 0, 0
	for i, r := range rs {
		if r == '\n' {
			cells[i] = cell{line: line, col: col}
			line, col = line+1, 0
			continue
		}
		w := runewidth.RuneWidth(r)
		if width > 0 && col > 0 && col+w > width {
			line, col = line+1, 0
		}
		cells[i] = cell{line: line, col: col, width: w}
		col += w
	}
	return cells
}

// Lines breaks text the way Paint lays it out, so a presenter can draw the
// lines and then overlay the rectangles.
func Lines(text string, width int) []string {
	rs := []rune(text)
	cells := layout(text, width)
	var out []string
	start, line := 0, 0
	for i, c := range cells {
		if c.line == line {
			continue
		}
		end := i
		if rs[i-1] == '\n' {
			end = i - 1
		}
		out = append(out, string(rs[start:end]))
		start, line = i, c.line
	}
	end := len(rs)
	if end > 0 && rs[end-1] == '\n' {
		out = append(out, string(rs[start:end-1]))
		start = end
	}
	return append(out, string(rs[start:end]))
}

// Paint returns the rectangles covering ranges in text laid out at width.
// A range crossing a line break yields one rectangle per line. Ranges are
// clamped to the text; empty ones produce nothing.
func Paint(text string, ranges []Range, width int) []Rect {
	cells := layout(text, width)
	var rects []Rect
	for _, r := range ranges {
		start, end := max(r.Start, 0), min(r.End, len(cells))
		var cur *Rect
		for i := start; i < end; i++ {
			c := cells[i]
			if c.width == 0 {
				continue
			}
			if cur != nil && cur.Line == c.line && cur.Col+cur.Width == c.col {
				cur.Width += c.width
				continue
			}
			rects = append(rects, Rect{Line: c.line, Col: c.col, Width: c.width, Active: r.Active})
			cur = &rects[len(rects)-1]
		}
	}
	return rects
}

// Piece is a run of text that is either plain or inside a match.
type Piece struct {
	Text   string
	Match  bool
	Active bool
}

// Split cuts text into pieces at range boundaries so a presenter can style
// matches. Ranges must be ordered and non-overlapping, as search results for
// one node are.
func Split(text string, ranges []Range) []Piece {
	rs := []rune(text)
	var out []Piece
	pos := 0
	for _, r := range ranges {
		start, end := max(r.Start, pos), min(r.End, len(rs))
		if start >= end {
			continue
		}
		if start > pos {
			out = append(out, Piece{Text: string(rs[pos:start])})
		}
		out = append(out, Piece{Text: string(rs[start:end]), Match: true, Active: r.Active})
		pos = end
	}
	if pos < len(rs) {
		out = append(out, Piece{Text: string(rs[pos:])})
	}
	return out
}
