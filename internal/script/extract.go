package script

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrMissingFunctionDefinition = errors.New("completion has no function definition")
	ErrNoCodeBlockFound          = errors.New("completion has no fenced code block")
	ErrOutputVariableMissing     = errors.New("generated code did not bind the output variable")
	ErrOutputTypeMismatch        = errors.New("output variable is not a table")
)

var (
	defMarker = regexp.MustCompile(`\bdef\s+\w+\s*\(`)
	codeFence = regexp.MustCompile("(?s)```(?:python|py|starlark)[ \\t]*\\r?\\n(.*?)```")
)

// Validate extracts the code of the first fenced block from an LLM completion.
// The completion must define a function somewhere and carry a block fenced
// as python, py or starlark. The returned code is trimmed of surrounding
// whitespace and never executed here.
func Validate(completion string) (string, error) {
	if !defMarker.MatchString(completion) {
		return "", ErrMissingFunctionDefinition
	}
	m := codeFence.FindStringSubmatch(completion)
	if m == nil {
		return "", ErrNoCodeBlockFound
	}
	return strings.TrimSpace(m[1]), nil
}

var importLine = regexp.MustCompile(`(?m)^[ \t]*(?:import[ \t]+[\w.]+(?:[ \t]+as[ \t]+\w+)?|from[ \t]+[\w.]+[ \t]+import[ \t]+.*)[ \t]*$`)

// stripImports blanks pandas/numpy style import lines; the equivalent
// helpers are predeclared.
func stripImports(code string) string {
	return importLine.ReplaceAllString(code, "")
}
