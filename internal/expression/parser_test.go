package expression

import (
	"reflect"
	"testing"
)

func TestParser_Parse_MultilineTags(t *testing.T) {
	p := NewParser()

	expressions, clean := p.Parse("*smile*\nHello there!\n*giggle*")

	want := []string{"smile", "giggle"}
	if !reflect.DeepEqual(expressions, want) {
		t.Errorf("expected expressions %v, got %v", want, expressions)
	}
	if clean != "Hello there!" {
		t.Errorf("expected clean text 'Hello there!', got %q", clean)
	}
}

func TestParser_Parse_InlineTags(t *testing.T) {
	p := NewParser()

	expressions, clean := p.Parse("*smirk* Oh really? *laugh* That's hilarious!")

	want := []string{"smirk", "laugh"}
	if !reflect.DeepEqual(expressions, want) {
		t.Errorf("expected expressions %v, got %v", want, expressions)
	}
	if clean != "Oh really? That's hilarious!" {
		t.Errorf("unexpected clean text: %q", clean)
	}
}

func TestParser_Parse_UnknownTagsRemoved(t *testing.T) {
	p := NewParser()

	expressions, clean := p.Parse("*invalid* Hello *smile* world *unknown*")

	want := []string{"smile"}
	if !reflect.DeepEqual(expressions, want) {
		t.Errorf("expected expressions %v, got %v", want, expressions)
	}
	if clean != "Hello world" {
		t.Errorf("expected clean text 'Hello world', got %q", clean)
	}
}

func TestParser_Parse_EmptyInput(t *testing.T) {
	p := NewParser()

	expressions, clean := p.Parse("")

	if len(expressions) != 0 {
		t.Errorf("expected no expressions, got %v", expressions)
	}
	if clean != "" {
		t.Errorf("expected empty clean text, got %q", clean)
	}
}

func TestParser_Parse_UnterminatedMarker(t *testing.T) {
	p := NewParser()

	// A lone asterisk has no closer and captures nothing.
	expressions, clean := p.Parse("Hello *smile world")

	if len(expressions) != 0 {
		t.Errorf("expected no expressions, got %v", expressions)
	}
	if clean != "Hello *smile world" {
		t.Errorf("expected unterminated marker left in text, got %q", clean)
	}
}

func TestParser_Parse_AdjacentMarkersPairNonGreedy(t *testing.T) {
	p := NewParser()

	// "*a* *b*" must pair as (a)(b), not one greedy capture of "a* *b".
	expressions, clean := p.Parse("*smile* *giggle* hi")

	want := []string{"smile", "giggle"}
	if !reflect.DeepEqual(expressions, want) {
		t.Errorf("expected expressions %v, got %v", want, expressions)
	}
	if clean != "hi" {
		t.Errorf("expected clean text 'hi', got %q", clean)
	}
}

func TestParser_Parse_NormalizesCaseAndWhitespace(t *testing.T) {
	p := NewParser()

	expressions, _ := p.Parse("* Smile * hello *GIGGLE*")

	want := []string{"smile", "giggle"}
	if !reflect.DeepEqual(expressions, want) {
		t.Errorf("expected expressions %v, got %v", want, expressions)
	}
}

func TestParser_Parse_IdempotentOnCleanOutput(t *testing.T) {
	p := NewParser()

	_, clean := p.Parse("*smile*\nOh really?\n*giggle*\nThat's cute.")
	again, cleanAgain := p.Parse(clean)

	if len(again) != 0 {
		t.Errorf("expected no expressions on re-parse, got %v", again)
	}
	if cleanAgain != clean {
		t.Errorf("expected clean text stable under re-parse, got %q vs %q", cleanAgain, clean)
	}
}

func TestIsValidExpression(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"smile", true},
		{" SMILE ", true},
		{"Giggle", true},
		{"invalid", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsValidExpression(tc.in); got != tc.want {
			t.Errorf("IsValidExpression(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestToneHint(t *testing.T) {
	if hint := ToneHint([]string{"smile", "giggle"}); hint != "warm" {
		t.Errorf("expected first hinted expression to win, got %q", hint)
	}
	if hint := ToneHint([]string{"surprised"}); hint != "" {
		t.Errorf("expected no hint for surprised, got %q", hint)
	}
	if hint := ToneHint(nil); hint != "" {
		t.Errorf("expected no hint for empty list, got %q", hint)
	}
}
