package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/highlight"
	"github.com/vanderheijden86/modeltree/pkg/tree"
)

// listHeight is the number of rows left for the outline.
func (m Model) listHeight() int {
	chrome := 1 + 1 + detailHeight + 1 + lipgloss.Height(m.helpView())
	return max(m.height-chrome, 1)
}

func (m Model) helpView() string {
	return m.help.View(m.keys)
}

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")

	visible := m.tree.VisibleNodes()
	rows := m.listHeight()
	end := min(m.offset+rows, len(visible))
	sel, _ := m.tree.Selection()
	width := max(m.width-1, 20)
	for i := m.offset; i < end; i++ {
		id := visible[i]
		row := m.renderRow(id, width)
		if id == sel {
			row = m.theme.Selected.Width(width).Render(row)
		}
		sb.WriteString(row)
		sb.WriteString("\n")
	}
	for i := end - m.offset; i < rows; i++ {
		sb.WriteString("\n")
	}

	sb.WriteString(m.theme.Detail.Width(width).Render(m.renderDetail(sel, width)))
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus(width))
	sb.WriteString("\n")
	sb.WriteString(m.helpView())
	return sb.String()
}

func (m Model) renderHeader() string {
	mode := m.theme.ModeView.Render("VIEW")
	if m.tree.Mode() == tree.ModeEdit {
		mode = m.theme.ModeEdit.Render("EDIT")
	}
	parts := []string{
		mode,
		m.theme.Header.Render(m.title),
		m.theme.MutedText.Render(fmt.Sprintf("%d nodes", m.tree.Len())),
	}
	if q := m.search.Query(); q != "" {
		summary := fmt.Sprintf("/%s  %d/%d", q, m.search.ActiveIndex()+1, m.search.Len())
		if m.search.Len() == 0 {
			summary = fmt.Sprintf("/%s  no matches", q)
		}
		parts = append(parts, m.theme.MutedText.Render(summary))
	}
	return strings.Join(parts, " ")
}

func (m Model) renderRow(id tree.NodeID, width int) string {
	t := m.tree
	var b strings.Builder

	prefix := m.branchPrefix(id)
	b.WriteString(m.theme.Branch.Render(prefix))
	b.WriteString(m.theme.Branch.Render(expandIndicator(t, id)))
	b.WriteString(" ")

	label := "$"
	if seg, ok := t.Segment(id); ok {
		if seg.IsIndex() {
			label = fmt.Sprintf("[%d]", seg.Index())
		} else {
			label = seg.Key()
		}
	}
	b.WriteString(m.theme.Renderer.NewStyle().Foreground(m.theme.Key).Render(label))
	used := runewidth.StringWidth(prefix) + 2 + runewidth.StringWidth(label)

	kind := t.Kind(id)
	if kind.IsContainer() {
		summary := fmt.Sprintf(" {%d}", t.Size(id))
		if kind == document.KindArray {
			summary = fmt.Sprintf(" [%d]", t.Size(id))
		}
		if container, _, ok := t.AddingTarget(); ok && container == id {
			summary += " +"
		}
		b.WriteString(m.theme.MutedText.Render(summary))
		return b.String()
	}

	b.WriteString(m.theme.MutedText.Render(": "))
	used += 2
	style := m.theme.KindStyle(kind)
	quote := ""
	if kind == document.KindString {
		quote = `"`
	}
	avail := width - used - 2*len(quote)
	b.WriteString(style.Render(quote))
	b.WriteString(m.renderPieces(highlight.Split(t.Text(id), m.search.Ranges(id)), style, avail))
	b.WriteString(style.Render(quote))
	return b.String()
}

// renderPieces styles match pieces and truncates the run to avail cells.
func (m Model) renderPieces(pieces []highlight.Piece, base lipgloss.Style, avail int) string {
	var b strings.Builder
	left := avail
	for _, p := range pieces {
		if left <= 0 {
			break
		}
		text := strings.ReplaceAll(p.Text, "\n", "↵")
		if w := runewidth.StringWidth(text); w > left {
			text = runewidth.Truncate(text, left, "…")
		}
		left -= runewidth.StringWidth(text)

		style := base
		switch {
		case p.Active:
			style = m.theme.ActiveMatch
		case p.Match:
			style = m.theme.Match
		}
		b.WriteString(style.Render(text))
	}
	return b.String()
}

// branchPrefix draws the tree lines leading to id.
func (m Model) branchPrefix(id tree.NodeID) string {
	t := m.tree
	var chain []tree.NodeID
	for cur := id; ; {
		parent, ok := t.Parent(cur)
		if !ok {
			break
		}
		chain = append(chain, cur)
		cur = parent
	}
	if len(chain) == 0 {
		return ""
	}
	var b strings.Builder
	for i := len(chain) - 1; i >= 1; i-- {
		if isLastChild(t, chain[i]) {
			b.WriteString("    ")
		} else {
			b.WriteString("│   ")
		}
	}
	if isLastChild(t, id) {
		b.WriteString("└── ")
	} else {
		b.WriteString("├── ")
	}
	return b.String()
}

func isLastChild(t *tree.Model, id tree.NodeID) bool {
	parent, ok := t.Parent(id)
	if !ok {
		return true
	}
	children := t.Children(parent)
	return len(children) > 0 && children[len(children)-1] == id
}

func expandIndicator(t *tree.Model, id tree.NodeID) string {
	switch {
	case !t.Kind(id).IsContainer():
		return "•"
	case t.Expanded(id):
		return "▾"
	default:
		return "▸"
	}
}

// renderDetail shows the selection's path and its full value, wrapped,
// with search matches painted over it.
func (m Model) renderDetail(sel tree.NodeID, width int) string {
	t := m.tree
	if !t.Contains(sel) {
		return strings.Repeat("\n", detailHeight-1)
	}
	kind := t.Kind(sel)
	head := m.theme.MutedText.Render(fmt.Sprintf("%s  %s", t.Path(sel), kind))

	var body []string
	if kind.IsContainer() {
		body = []string{m.theme.MutedText.Render(fmt.Sprintf("%d children", t.Size(sel)))}
	} else {
		text := t.Text(sel)
		lines := highlight.Lines(text, width)
		rects := highlight.Paint(text, m.search.Ranges(sel), width)
		style := m.theme.KindStyle(kind)
		for i, line := range lines {
			if i == detailHeight-1 {
				break
			}
			body = append(body, m.paintLine(line, i, rects, style))
		}
	}
	for len(body) < detailHeight-1 {
		body = append(body, "")
	}
	return head + "\n" + strings.Join(body, "\n")
}

// paintLine renders one wrapped line, styling the cells covered by the
// rectangles on that line.
func (m Model) paintLine(line string, n int, rects []highlight.Rect, base lipgloss.Style) string {
	const (
		plain = iota
		match
		active
	)
	classAt := func(col int) int {
		for _, r := range rects {
			if r.Line == n && col >= r.Col && col < r.Col+r.Width {
				if r.Active {
					return active
				}
				return match
			}
		}
		return plain
	}
	styles := [...]lipgloss.Style{plain: base, match: m.theme.Match, active: m.theme.ActiveMatch}

	var b, run strings.Builder
	cur, col := -1, 0
	for _, r := range line {
		class := classAt(col)
		if class != cur && run.Len() > 0 {
			b.WriteString(styles[cur].Render(run.String()))
			run.Reset()
		}
		cur = class
		run.WriteRune(r)
		col += runewidth.RuneWidth(r)
	}
	if run.Len() > 0 {
		b.WriteString(styles[cur].Render(run.String()))
	}
	return b.String()
}

func (m Model) renderStatus(width int) string {
	if m.prompt != promptNone && m.prompt != promptAddKind {
		return m.input.View()
	}
	if m.status != "" {
		if m.statusErr {
			return m.theme.ErrorText.Render(runewidth.Truncate(m.status, width, "…"))
		}
		return m.theme.MutedText.Render(runewidth.Truncate(m.status, width, "…"))
	}
	if t := m.tree; t.IsAddingNode() {
		return m.theme.MutedText.Render("adding... esc cancels")
	}
	return ""
}
