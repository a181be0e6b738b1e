// Package expression extracts emotion tags from LLM responses and cleans
// the remaining text for speech synthesis.
package expression

import (
	"strings"
)

// SupportedExpressions is the closed set of expressions that map to
// animation triggers on the frontend.
var SupportedExpressions = []string{
	"smile", "smirk", "pout", "giggle", "laugh",
	"blush", "shy", "angry", "surprised", "thinking",
	"excited", "happy", "sad", "worried", "confused",
}

// toneHints maps expressions to a delivery hint for the TTS engine.
// Expressions without an entry carry no hint.
var toneHints = map[string]string{
	"smile":   "warm",
	"smirk":   "confident",
	"giggle":  "playful",
	"pout":    "gentle",
	"blush":   "shy",
	"shy":     "soft",
	"angry":   "firm",
	"excited": "energetic",
	"happy":   "joyful",
	"sad":     "melancholic",
}

var supported = func() map[string]struct{} {
	m := make(map[string]struct{}, len(SupportedExpressions))
	for _, e := range SupportedExpressions {
		m[e] = struct{}{}
	}
	return m
}()

// Parser extracts *expression* tags from model output.
type Parser struct{}

// NewParser creates a new expression parser.
func NewParser() *Parser {
	return &Parser{}
}

// span is one marker-delimited capture. start/end cover the full span
// including both asterisks; content is the text between them.
type span struct {
	start, end int
	content    string
}

// scan finds all *...* spans with a non-greedy, left-to-right pairwise
// walk: each asterisk closes the nearest earlier unpaired one, and an
// asterisk with no closer captures nothing. A scanner is used instead
// of a regexp so adjacent markers like "*a* *b*" pair the same way the
// frontend animation layer expects.
func scan(text string) []span {
	var spans []span
	pos := 0
	for {
		open := strings.IndexByte(text[pos:], '*')
		if open < 0 {
			break
		}
		open += pos
		close := strings.IndexByte(text[open+1:], '*')
		if close < 0 {
			break
		}
		close += open + 1
		spans = append(spans, span{
			start:   open,
			end:     close + 1,
			content: text[open+1 : close],
		})
		pos = close + 1
	}
	return spans
}

// Parse extracts expressions and clean text from model output.
//
// Example input:
//
//	*smile*
//	Oh really? You think you can beat me?
//	*giggle*
//	That's cute.
//
// returns (["smile", "giggle"], "Oh really? You think you can beat me? That's cute.")
//
// All marker-delimited spans are removed from the clean text, including
// unrecognized ones; only spans in SupportedExpressions are reported.
func (p *Parser) Parse(text string) ([]string, string) {
	spans := scan(text)

	expressions := make([]string, 0, len(spans))
	for _, s := range spans {
		expr := strings.ToLower(strings.TrimSpace(s.content))
		if _, ok := supported[expr]; ok {
			expressions = append(expressions, expr)
		}
	}

	var sb strings.Builder
	sb.Grow(len(text))
	pos := 0
	for _, s := range spans {
		sb.WriteString(text[pos:s.start])
		pos = s.end
	}
	sb.WriteString(text[pos:])

	// Collapse whitespace runs (including newlines) to single spaces.
	clean := strings.Join(strings.Fields(sb.String()), " ")

	return expressions, clean
}

// ExtractExpressions returns only the valid expressions found in text.
func (p *Parser) ExtractExpressions(text string) []string {
	expressions, _ := p.Parse(text)
	return expressions
}

// RemoveExpressions returns text with all expression tags stripped.
func (p *Parser) RemoveExpressions(text string) string {
	_, clean := p.Parse(text)
	return clean
}

// IsValidExpression reports whether an expression is supported.
// Comparison is case- and surrounding-whitespace-insensitive.
func IsValidExpression(expression string) bool {
	_, ok := supported[strings.ToLower(strings.TrimSpace(expression))]
	return ok
}

// ToneHint returns a delivery hint for the first expression that has
// one, or empty when none do. The hint is advisory only; TTS providers
// are free to ignore it.
func ToneHint(expressions []string) string {
	for _, expr := range expressions {
		if hint, ok := toneHints[expr]; ok {
			return hint
		}
	}
	return ""
}
