package intent

import (
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Strategy names the tier that produced a Parsed result.
type Strategy string

const (
	StrategyFenced Strategy = "fenced"
	StrategyRegex  Strategy = "regex"
	StrategyBraces Strategy = "braces"
)

// Result is either Parsed or Unparseable.
type Result interface {
	result()
}

// Parsed holds the decoded JSON object.
type Parsed struct {
	Fields   map[string]any
	Strategy Strategy
}

// Unparseable means no tier produced a JSON object.
type Unparseable struct {
	Reason string
}

func (Parsed) result()      {}
func (Unparseable) result() {}

var (
	fencedBlock  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{[^`]*\\})\\s*```")
	responseOnly = regexp.MustCompile(`\{\s*"response"\s*:\s*"([^"]+)"\s*\}`)
)

// Parse extracts a JSON object from free-form model output. Tiers are tried
// in order: a fenced ``` block, a bare {"response": "..."} object, then the
// first brace-balanced span. Parse never fails; it returns Unparseable.
func Parse(text string) Result {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		var fields map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &fields); err == nil && fields != nil {
			return Parsed{Fields: fields, Strategy: StrategyFenced}
		}
	}

	if m := responseOnly.FindStringSubmatch(text); m != nil {
		return Parsed{Fields: map[string]any{"response": m[1]}, Strategy: StrategyRegex}
	}

	span, ok := firstBalanced(text)
	if !ok {
		return Unparseable{Reason: "no balanced JSON object in output"}
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(span), &fields); err != nil || fields == nil {
		return Unparseable{Reason: "brace span is not a JSON object"}
	}
	return Parsed{Fields: fields, Strategy: StrategyBraces}
}

// firstBalanced returns text from the first '{' to its matching '}'.
func firstBalanced(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
