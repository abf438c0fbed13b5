// Package notetext turns stored note bodies into terminal text. Bodies written in the web
// editor arrive as Lexical JSON; anything else is shown as is.
package notetext

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Text format bits set by the editor on text nodes.
const (
	formatBold          = 1
	formatItalic        = 2
	formatStrikethrough = 4
	formatCode          = 16
)

type document struct {
	Root node `json:"root"`
}

type node struct {
	Type     string          `json:"type"`
	Children []node          `json:"children"`
	Text     string          `json:"text"`
	Format   json.RawMessage `json:"format"`
	Tag      string          `json:"tag"`
	URL      string          `json:"url"`
	ListType string          `json:"listType"`
	Start    int             `json:"start"`
	Checked  bool            `json:"checked"`
}

// bits reads the text format bitmask. Block nodes store an alignment string there instead.
func (n node) bits() int {
	var v int
	if json.Unmarshal(n.Format, &v) != nil {
		return 0
	}
	return v
}

// IsLexical reports whether content looks like an editor document.
func IsLexical(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), `{"root":`)
}

// Render converts content to Markdown-flavoured plain text. Content that is not a valid
// editor document is returned unchanged.
func Render(content string) string {
	if !IsLexical(content) {
		return content
	}
	var doc document
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &doc); err != nil {
		return content
	}

	var r renderer
	for _, block := range doc.Root.Children {
		r.block(block, 0)
	}
	return strings.TrimRight(r.sb.String(), "\n")
}

// Preview is the first maxLines non-empty lines of the rendered content, each cut to
// maxWidth runes.
func Preview(content string, maxLines, maxWidth int) []string {
	var lines []string
	for _, line := range strings.Split(Render(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if maxWidth > 0 && utf8.RuneCountInString(line) > maxWidth {
			line = string([]rune(line)[:maxWidth-1]) + "…"
		}
		lines = append(lines, line)
		if len(lines) == maxLines {
			break
		}
	}
	return lines
}

type renderer struct {
	sb strings.Builder
}

func (r *renderer) block(n node, depth int) {
	switch n.Type {
	case "heading":
		level := 1
		if len(n.Tag) == 2 && n.Tag[0] == 'h' {
			level = int(n.Tag[1] - '0')
		}
		r.sb.WriteString(strings.Repeat("#", level) + " ")
		r.inline(n.Children)
		r.sb.WriteString("\n\n")
	case "quote":
		r.sb.WriteString("> ")
		r.inline(n.Children)
		r.sb.WriteString("\n\n")
	case "code":
		r.sb.WriteString("```\n")
		r.inline(n.Children)
		r.sb.WriteString("\n```\n\n")
	case "list":
		r.list(n, depth)
		if depth == 0 {
			r.sb.WriteString("\n")
		}
	case "table":
		r.table(n)
	case "horizontalrule":
		r.sb.WriteString("---\n\n")
	default:
		r.inline(n.Children)
		r.sb.WriteString("\n\n")
	}
}

func (r *renderer) inline(children []node) {
	for _, c := range children {
		switch c.Type {
		case "text":
			r.text(c)
		case "linebreak":
			r.sb.WriteString("\n")
		case "link", "autolink":
			r.sb.WriteString("[")
			r.inline(c.Children)
			fmt.Fprintf(&r.sb, "](%s)", c.URL)
		default:
			r.inline(c.Children)
		}
	}
}

func (r *renderer) text(n node) {
	bits := n.bits()
	var open, close []string
	for _, f := range []struct {
		bit    int
		marker string
	}{
		{formatCode, "`"},
		{formatBold, "**"},
		{formatItalic, "_"},
		{formatStrikethrough, "~~"},
	} {
		if bits&f.bit != 0 {
			open = append(open, f.marker)
			close = append([]string{f.marker}, close...)
		}
	}
	r.sb.WriteString(strings.Join(open, ""))
	r.sb.WriteString(n.Text)
	r.sb.WriteString(strings.Join(close, ""))
}

func (r *renderer) list(n node, depth int) {
	index := 1
	if n.Start > 0 {
		index = n.Start
	}
	for _, item := range n.Children {
		if item.Type != "listitem" {
			continue
		}

		r.sb.WriteString(strings.Repeat("  ", depth))
		switch n.ListType {
		case "number":
			fmt.Fprintf(&r.sb, "%d. ", index)
			index++
		case "check":
			if item.Checked {
				r.sb.WriteString("- [x] ")
			} else {
				r.sb.WriteString("- [ ] ")
			}
		default:
			r.sb.WriteString("- ")
		}

		var nested []node
		var content []node
		for _, c := range item.Children {
			if c.Type == "list" {
				nested = append(nested, c)
			} else {
				content = append(content, c)
			}
		}
		r.inline(content)
		r.sb.WriteString("\n")
		for _, l := range nested {
			r.list(l, depth+1)
		}
	}
}

// table renders the first row as the header.
func (r *renderer) table(n node) {
	var rows [][]string
	cols := 0
	for _, row := range n.Children {
		if row.Type != "tablerow" {
			continue
		}
		var cells []string
		for _, cell := range row.Children {
			var cr renderer
			for _, c := range cell.Children {
				cr.inline(c.Children)
				cr.sb.WriteString(" ")
			}
			cells = append(cells, strings.TrimSpace(strings.ReplaceAll(cr.sb.String(), "\n", " ")))
		}
		rows = append(rows, cells)
		cols = max(cols, len(cells))
	}
	if len(rows) == 0 {
		return
	}

	writeRow := func(cells []string) {
		r.sb.WriteString("|")
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			r.sb.WriteString(" " + cell + " |")
		}
		r.sb.WriteString("\n")
	}

	writeRow(rows[0])
	r.sb.WriteString("|" + strings.Repeat("---|", cols) + "\n")
	for _, row := range rows[1:] {
		writeRow(row)
	}
	r.sb.WriteString("\n")
}
