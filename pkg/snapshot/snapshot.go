package snapshot

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/modeltree/pkg/document"
)

// Options controls snapshot export.
type Options struct {
	Path   string // Output path; format inferred from extension when Format empty
	Format string // "svg" or "png" (case-insensitive)
	Title  string // Rendered in the header
	Total  int    // Node count of the whole tree, shown next to the visible count
}

// Save renders rows to opts.Path.
func Save(rows []Row, opts Options) error {
	if len(rows) == 0 {
		return fmt.Errorf("nothing to render")
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	format, err := resolveFormat(opts.Format, opts.Path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	if err := Render(f, rows, format, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func resolveFormat(format, path string) (string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".png":
			format = "png"
		default:
			format = "svg"
		}
	}
	if format != "svg" && format != "png" {
		return "", fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	return format, nil
}

// Render writes rows to w as SVG or PNG.
func Render(w io.Writer, rows []Row, format string, opts Options) error {
	l := buildLayout(rows, opts)
	switch strings.ToLower(format) {
	case "svg":
		return renderSVG(w, l)
	case "png":
		return renderPNG(w, l)
	}
	return fmt.Errorf("unsupported format %q (want svg or png)", format)
}

// --- layout ------------------------------------------------------------------

const (
	rowHeight  = 22.0
	indent     = 22.0
	marginX    = 24.0
	headerH    = 64.0
	charWidth  = 7.0
	maxLabel   = 80
	minWidth   = 480
	dotSize    = 10.0
	textOffset = 16.0
)

type placedRow struct {
	Row
	X, Y float64
}

type layout struct {
	Rows   []placedRow
	Width  int
	Height int
	Title  string
	Total  int
}

func buildLayout(rows []Row, opts Options) layout {
	l := layout{Title: opts.Title, Total: opts.Total}
	if l.Title == "" {
		l.Title = "document"
	}
	width := float64(minWidth)
	for i, r := range rows {
		r.Label = truncate(r.Label, maxLabel)
		if r.Collapsed {
			r.Label += " …"
		}
		p := placedRow{
			Row: r,
			X:   marginX + float64(r.Depth)*indent,
			Y:   headerH + 16 + float64(i)*rowHeight,
		}
		if right := p.X + textOffset + float64(len([]rune(r.Label)))*charWidth + marginX; right > width {
			width = right
		}
		l.Rows = append(l.Rows, p)
	}
	l.Width = int(width)
	l.Height = int(headerH + 16 + float64(len(rows))*rowHeight + 16)
	return l
}

func (l layout) summary() string {
	if l.Total > 0 {
		return fmt.Sprintf("%d of %d nodes shown", len(l.Rows), l.Total)
	}
	return fmt.Sprintf("%d nodes shown", len(l.Rows))
}

var (
	colorBackdrop = color.RGBA{R: 0xfa, G: 0xfa, B: 0xfa, A: 0xff}
	colorHeaderBG = color.RGBA{R: 0xe8, G: 0xea, B: 0xf0, A: 0xff}
	colorText     = color.RGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xff}
	colorSubtle   = color.RGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xff}
	colorEdge     = color.RGBA{R: 0xbb, G: 0xbb, B: 0xbb, A: 0xff}
)

func kindColor(k document.Kind) color.RGBA {
	switch k {
	case document.KindObject, document.KindArray:
		return color.RGBA{R: 0x5a, G: 0x56, B: 0xe0, A: 0xff}
	case document.KindString:
		return color.RGBA{R: 0x2e, G: 0x9e, B: 0x5b, A: 0xff}
	case document.KindNumber:
		return color.RGBA{R: 0xd9, G: 0x7b, B: 0x1c, A: 0xff}
	case document.KindBoolean:
		return color.RGBA{R: 0xc0, G: 0x39, B: 0x8a, A: 0xff}
	case document.KindDate:
		return color.RGBA{R: 0x1f, G: 0x8f, B: 0xb8, A: 0xff}
	}
	return color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
}

// --- PNG -------------------------------------------------------------------

func renderPNG(w io.Writer, l layout) error {
	dc := gg.NewContext(l.Width, l.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(12, 12, float64(l.Width)-24, headerH-16, 8)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(l.Title, marginX, 30, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(l.summary(), marginX, 48, 0, 0.5)

	dc.SetColor(colorEdge)
	dc.SetLineWidth(1)
	for _, r := range l.Rows {
		if r.Parent < 0 {
			continue
		}
		p := l.Rows[r.Parent]
		x := p.X + dotSize/2
		dc.DrawLine(x, p.Y+dotSize/2, x, r.Y)
		dc.DrawLine(x, r.Y, r.X, r.Y)
		dc.Stroke()
	}

	for _, r := range l.Rows {
		dc.SetColor(kindColor(r.Kind))
		dc.DrawRoundedRectangle(r.X, r.Y-dotSize/2, dotSize, dotSize, 2)
		dc.Fill()
		dc.SetColor(colorText)
		dc.DrawStringAnchored(r.Label, r.X+textOffset, r.Y, 0, 0.5)
	}

	return dc.EncodePNG(w)
}

// --- SVG -------------------------------------------------------------------

func renderSVG(w io.Writer, l layout) error {
	canvas := svg.New(w)
	canvas.Start(l.Width, l.Height)
	canvas.Rect(0, 0, l.Width, l.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(12, 12, l.Width-24, int(headerH-16), 8, 8, fmt.Sprintf("fill:%s", css(colorHeaderBG)))
	canvas.Text(int(marginX), 34, l.Title, fmt.Sprintf("fill:%s;font-size:14px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(int(marginX), 52, l.summary(), fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))

	edge := fmt.Sprintf("stroke:%s;stroke-width:1;fill:none", css(colorEdge))
	for _, r := range l.Rows {
		if r.Parent < 0 {
			continue
		}
		p := l.Rows[r.Parent]
		x := int(p.X + dotSize/2)
		canvas.Polyline([]int{x, x, int(r.X)}, []int{int(p.Y + dotSize/2), int(r.Y), int(r.Y)}, edge)
	}

	for _, r := range l.Rows {
		canvas.Roundrect(int(r.X), int(r.Y-dotSize/2), int(dotSize), int(dotSize), 2, 2, fmt.Sprintf("fill:%s", css(kindColor(r.Kind))))
		canvas.Text(int(r.X+textOffset), int(r.Y+4), r.Label, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorText)))
	}

	canvas.End()
	return nil
}

// --- helpers ---------------------------------------------------------------

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(strings.ReplaceAll(s, "\n", "↵"))
	if len(runes) <= max {
		return string(runes)
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
