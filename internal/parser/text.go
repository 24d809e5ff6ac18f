package parser

import "strings"

// textParser accepts plain text and Markdown.
type textParser struct{}

func (textParser) CanParse(filename string) bool {
	name := strings.ToLower(filename)
	for _, ext := range []string{".txt", ".md", ".markdown"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func (textParser) Parse(content []byte) (string, error) {
	return normalize(string(content)), nil
}

// normalize unifies line endings and collapses runs of blank lines.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}
