// Package clifmt renders operator-facing tables for the CLI.
package clifmt

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

const (
	defaultWidth    = 100
	minDetailWidth  = 24
	columnSeparator = "  "
)

type Row struct {
	Name   string
	Detail string
}

type TableOptions struct {
	Title        string
	NameHeader   string
	DetailHeader string
	EmptyText    string
	// Width overrides terminal detection. Zero means detect, falling back to
	// 100 columns when out is not a terminal.
	Width int
}

// PrintTable writes rows as two columns, wrapping Detail to the available
// width. Bold headers are emitted only when out is a terminal.
func PrintTable(out io.Writer, rows []Row, opts TableOptions) {
	if out == nil {
		out = os.Stdout
	}
	tty := isTerminal(out)
	if title := strings.TrimSpace(opts.Title); title != "" {
		fmt.Fprintf(out, "%s (%d)\n", bold(title, tty), len(rows))
	}
	if len(rows) == 0 {
		empty := strings.TrimSpace(opts.EmptyText)
		if empty == "" {
			empty = "No entries."
		}
		fmt.Fprintln(out, empty)
		return
	}

	nameHeader := orDefault(opts.NameHeader, "NAME")
	detailHeader := orDefault(opts.DetailHeader, "DETAIL")
	nameWidth := utf8.RuneCountInString(nameHeader)
	for _, r := range rows {
		if n := utf8.RuneCountInString(r.Name); n > nameWidth {
			nameWidth = n
		}
	}
	detailWidth := width(out, opts.Width) - nameWidth - len(columnSeparator)
	if detailWidth < minDetailWidth {
		detailWidth = minDetailWidth
	}

	fmt.Fprintln(out, bold(pad(nameHeader, nameWidth), tty)+columnSeparator+bold(detailHeader, tty))
	for _, r := range rows {
		lines := wrap(r.Detail, detailWidth)
		fmt.Fprintln(out, pad(r.Name, nameWidth)+columnSeparator+lines[0])
		for _, l := range lines[1:] {
			fmt.Fprintln(out, strings.Repeat(" ", nameWidth)+columnSeparator+l)
		}
	}
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func width(out io.Writer, override int) int {
	if override > 0 {
		return override
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return defaultWidth
}

func bold(s string, on bool) string {
	if !on {
		return s
	}
	return "\x1b[1m" + s + "\x1b[0m"
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func pad(s string, w int) string {
	if n := utf8.RuneCountInString(s); n < w {
		return s + strings.Repeat(" ", w-n)
	}
	return s
}

// wrap breaks text on spaces; words longer than w are split.
func wrap(text string, w int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{"-"}
	}
	var lines []string
	cur := ""
	for _, word := range words {
		for utf8.RuneCountInString(word) > w {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			rs := []rune(word)
			lines = append(lines, string(rs[:w]))
			word = string(rs[w:])
		}
		switch {
		case cur == "":
			cur = word
		case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(word) <= w:
			cur += " " + word
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}
