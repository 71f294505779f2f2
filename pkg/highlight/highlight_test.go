package highlight

import (
	"reflect"
	"testing"
)

func TestPaintSingleLine(t *testing.T) {
	got := Paint("value 42 and 42", []Range{{Start: 6, End: 8}, {Start: 13, End: 15, Active: true}}, 0)
	want := []Rect{
		{Line: 0, Col: 6, Width: 2},
		{Line: 0, Col: 13, Width: 2, Active: true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPaintWideRunes(t *testing.T) {
	// Each CJK rune occupies two cells.
	got := Paint("日本語", []Range{{Start: 1, End: 3}}, 0)
	want := []Rect{{Line: 0, Col: 2, Width: 4}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPaintWrapsAcrossLines(t *testing.T) {
	got := Paint("abcdefgh", []Range{{Start: 2, End: 6}}, 4)
	want := []Rect{
		{Line: 0, Col: 2, Width: 2},
		{Line: 1, Col: 0, Width: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	got = Paint("ab\ncd", []Range{{Start: 1, End: 4}}, 0)
	want = []Rect{
		{Line: 0, Col: 1, Width: 1},
		{Line: 1, Col: 0, Width: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected newline split %v, got %v", want, got)
	}
}

func TestPaintClampsRanges(t *testing.T) {
	if got := Paint("abc", []Range{{Start: 2, End: 10}, {Start: 5, End: 6}, {Start: 1, End: 1}}, 0); len(got) != 1 || got[0].Width != 1 {
		t.Errorf("expected one clamped rect, got %v", got)
	}
}

func TestSplit(t *testing.T) {
	got := Split("x42y42", []Range{{Start: 1, End: 3}, {Start: 4, End: 6, Active: true}})
	want := []Piece{
		{Text: "x"},
		{Text: "42", Match: true},
		{Text: "y"},
		{Text: "42", Match: true, Active: true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := Split("plain", nil); len(got) != 1 || got[0].Text != "plain" {
		t.Errorf("expected single plain piece, got %v", got)
	}
}

func TestLinesMatchesLayout(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"", 0, []string{""}},
		{"abcdef", 4, []string{"abcd", "ef"}},
		{"a\n\nb", 0, []string{"a", "", "b"}},
		{"ab\n", 0, []string{"ab", ""}},
		{"漢字漢", 4, []string{"漢字", "漢"}},
	}
	for _, tc := range tests {
		if got := Lines(tc.text, tc.width); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Lines(%q, %d): expected %q, got %q", tc.text, tc.width, tc.want, got)
		}
	}

	rects := Paint("abcdef", []Range{{Start: 4, End: 5}}, 4)
	if len(rects) != 1 || rects[0].Line != 1 || rects[0].Col != 0 {
		t.Errorf("expected the match on the second wrapped line, got %v", rects)
	}
}
