// Package parser extracts plain text from instruction documents handed to
// the analysis agent.
package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported indicates a format no registered parser accepts.
var ErrUnsupported = errors.New("unsupported document format")

// ErrEmptyDocument is returned when a document has no text after parsing.
var ErrEmptyDocument = errors.New("empty document")

// Parser defines a document parser implementation.
type Parser interface {
	CanParse(filename string) bool
	Parse(content []byte) (string, error)
}

var registry []Parser

// Register adds a parser implementation to the registry.
func Register(p Parser) {
	registry = append(registry, p)
}

// ParseFile selects a parser based on filename and returns parsed text content.
func ParseFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	for _, p := range registry {
		if p.CanParse(path) {
			text, err := p.Parse(data)
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(text) == "" {
				return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrEmptyDocument)
			}
			return text, nil
		}
	}
	return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
}

// LoadDocs parses every path in order; the first failure aborts.
func LoadDocs(paths []string) ([]string, error) {
	docs := make([]string, 0, len(paths))
	for _, p := range paths {
		text, err := ParseFile(p)
		if err != nil {
			return nil, fmt.Errorf("training doc %s: %w", p, err)
		}
		docs = append(docs, text)
	}
	return docs, nil
}

func init() {
	Register(textParser{})
	Register(docxParser{})
}
