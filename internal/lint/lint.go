// Package lint implements the protocol DSL's style linter: tab-only
// indentation at the expected brace depth, one field per line, a closing
// brace alone on its line, and no trailing whitespace. It operates on the
// DSL source text, upstream of [wireproto.Resolve] — a resolved protocol
// carries no source positions, so this is strictly a source-hygiene check
// run before parsing, not a decode/encode-time concern.
package lint

import (
	"fmt"
	"strings"
)

// Severity classifies a Message.
type Severity uint8

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Rule identifies which check produced a Message.
type Rule uint8

const (
	IndentationTabsOnly Rule = iota
	IndentationDepth
	OneFieldPerLine
	ClosingBraceAlone
	NoTrailingWhitespace
)

// Message is one lint finding, 1-indexed by line and column.
type Message struct {
	Line     int
	Column   int
	Rule     Rule
	Severity Severity
	Text     string
}

// Lint runs every rule over source and returns findings in line order.
func Lint(source string) []Message {
	var out []Message
	lines := strings.Split(source, "\n")
	depth := 0

	for i, line := range lines {
		lineNo := i + 1

		trimmedEnd := strings.TrimRight(line, " \t")
		if trimmedEnd != line {
			out = append(out, Message{
				Line: lineNo, Column: len(trimmedEnd) + 1,
				Rule: NoTrailingWhitespace, Severity: Warning,
				Text: "trailing whitespace not allowed",
			})
		}

		trimmed := strings.TrimLeft(line, " \t")
		leading := line[:len(line)-len(trimmed)]

		if strings.Contains(leading, " ") {
			out = append(out, Message{
				Line: lineNo, Column: 1,
				Rule: IndentationTabsOnly, Severity: Error,
				Text: "indentation must use tabs only (no spaces)",
			})
		}

		if trimmed != "" && !strings.HasPrefix(trimmed, "//") && !strings.HasPrefix(trimmed, "/*") {
			tabCount := strings.Count(leading, "\t")
			expected := max(0, depth)
			if strings.HasPrefix(trimmed, "}") {
				expected = max(0, depth-1)
			}
			if tabCount != expected {
				out = append(out, Message{
					Line: lineNo, Column: 1,
					Rule: IndentationDepth, Severity: Error,
					Text: tabDepthText(expected, depth, tabCount),
				})
			}
		}

		content := stripLineComment(trimmed)
		if n := strings.Count(content, ";"); n > 1 {
			out = append(out, Message{
				Line: lineNo, Column: 1,
				Rule: OneFieldPerLine, Severity: Error,
				Text: semicolonCountText(n),
			})
		}

		if strings.Contains(content, "}") && strings.Contains(content, ";") {
			out = append(out, Message{
				Line: lineNo, Column: 1,
				Rule: ClosingBraceAlone, Severity: Warning,
				Text: "closing `}` should be the only content on its line",
			})
		}

		depth += braceDelta(content)
	}

	return out
}

// Fix rewrites source to satisfy every rule: tabs for indentation at brace
// depth, one field per line, a lone closing brace, no trailing whitespace.
func Fix(source string) string {
	depth := 0
	var out []string

	for _, line := range strings.Split(source, "\n") {
		trimmedEnd := strings.TrimRight(line, " \t")
		trimmedStart := strings.TrimLeft(trimmedEnd, " \t")
		content := stripLineComment(trimmedStart)

		if n := strings.Count(content, ";"); n > 1 {
			comment := ""
			if i := strings.Index(trimmedStart, "//"); i >= 0 {
				comment = "  " + strings.TrimLeft(trimmedStart[i:], " \t")
			}
			parts := strings.Split(content, ";")
			for j, part := range parts {
				s := strings.TrimSpace(part)
				if s == "" {
					continue
				}
				isLast := j == len(parts)-1 || allEmpty(parts[j+1:])
				if strings.HasPrefix(s, "}") {
					depth += braceDelta(s)
					if isLast {
						s += comment
					}
					out = append(out, strings.Repeat("\t", max(0, depth))+s)
					continue
				}
				indent := strings.Repeat("\t", max(0, depth))
				suffix := ";"
				if isLast && comment != "" {
					suffix = ";" + comment
				}
				out = append(out, indent+s+suffix)
				depth += braceDelta(s)
			}
			continue
		}

		if strings.Contains(content, "}") && strings.Contains(content, ";") {
			indent := strings.Repeat("\t", max(0, depth))
			if close := strings.Index(content, "}"); close >= 0 {
				before := strings.TrimSuffix(strings.TrimSpace(content[:close]), ";")
				after := strings.TrimSpace(content[close:])
				if before != "" {
					out = append(out, indent+before+";")
				}
				out = append(out, strings.Repeat("\t", max(0, depth-1))+after)
				depth += braceDelta(content)
				continue
			}
		}

		if trimmedEnd == "" || trimmedStart == "" {
			out = append(out, "")
			continue
		}
		indentDepth := depth
		if strings.HasPrefix(content, "}") {
			indentDepth--
		}
		indent := strings.Repeat("\t", max(0, indentDepth))
		out = append(out, indent+content)
		depth += braceDelta(content)
	}

	return strings.Join(out, "\n") + "\n"
}

func stripLineComment(s string) string {
	if i := strings.Index(s, "//"); i >= 0 {
		return strings.TrimRight(s[:i], " \t")
	}
	return s
}

func braceDelta(s string) int {
	d := 0
	for _, c := range s {
		switch c {
		case '{':
			d++
		case '}':
			d--
		}
	}
	return d
}

func allEmpty(parts []string) bool {
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

func tabDepthText(expected, depth, found int) string {
	return fmt.Sprintf("expected %d tab(s) at depth %d (found %d)", expected, depth, found)
}

func semicolonCountText(n int) string {
	return fmt.Sprintf("one field per line (found %d semicolons)", n)
}
