package channels

import (
	"html"
	"strings"
	"unicode"
)

// Tags that imply a line break when stripped.
var blockTags = map[string]bool{
	"br":  true,
	"p":   true,
	"div": true,
	"li":  true,
	"tr":  true,
	"h1":  true,
	"h2":  true,
	"h3":  true,
	"h4":  true,
}

// StripHTML reduces an HTML body to readable plain text: tags removed,
// block boundaries turned into newlines, entities unescaped, whitespace
// collapsed. Script and style contents are dropped entirely.
func StripHTML(input string) string {
	var out strings.Builder
	out.Grow(len(input))

	inTag := false
	var tagName strings.Builder
	skipUntil := ""

	for i := 0; i < len(input); i++ {
		ch := input[i]
		switch {
		case ch == '<':
			inTag = true
			tagName.Reset()
		case ch == '>' && inTag:
			inTag = false
			name := normalizeTagName(tagName.String())
			if skipUntil != "" {
				if name == "/"+skipUntil {
					skipUntil = ""
				}
				continue
			}
			switch name {
			case "script", "style":
				skipUntil = name
			default:
				if blockTags[strings.TrimPrefix(name, "/")] {
					out.WriteByte('\n')
				}
			}
		case inTag:
			tagName.WriteByte(ch)
		case skipUntil != "":
			// inside <script> or <style>
		default:
			out.WriteByte(ch)
		}
	}

	return collapseWhitespace(html.UnescapeString(out.String()))
}

func normalizeTagName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.TrimSuffix(name, "/")
	if idx := strings.IndexFunc(name, unicode.IsSpace); idx >= 0 {
		name = name[:idx]
	}
	return name
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		collapsed := strings.Join(strings.Fields(line), " ")
		if collapsed != "" {
			kept = append(kept, collapsed)
		}
	}
	return strings.Join(kept, "\n")
}
