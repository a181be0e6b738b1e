package input

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestProcessor_ProcessText(t *testing.T) {
	p := NewProcessor(Limits{})

	got, err := p.ProcessText("  Hello   there!  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello there!" {
		t.Errorf("expected normalized text, got %q", got)
	}
}

func TestProcessor_ProcessText_Empty(t *testing.T) {
	p := NewProcessor(Limits{})

	if _, err := p.ProcessText("   \n\t "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestProcessor_ProcessText_TooLong(t *testing.T) {
	p := NewProcessor(Limits{})

	_, err := p.ProcessText(strings.Repeat("x", 1001))
	if !errors.Is(err, ErrTextTooLong) {
		t.Errorf("expected ErrTextTooLong, got %v", err)
	}

	if _, err := p.ProcessText(strings.Repeat("x", 1000)); err != nil {
		t.Errorf("expected 1000 chars accepted, got %v", err)
	}
}

func TestProcessor_ValidateAudio(t *testing.T) {
	p := NewProcessor(Limits{})

	if err := p.ValidateAudio(bytes.Repeat([]byte{0}, 200)); err != nil {
		t.Errorf("expected valid audio, got %v", err)
	}
	if err := p.ValidateAudio([]byte("tiny")); !errors.Is(err, ErrAudioTooSmall) {
		t.Errorf("expected ErrAudioTooSmall, got %v", err)
	}
	if err := p.ValidateAudio(bytes.Repeat([]byte{0}, 11<<20)); !errors.Is(err, ErrAudioTooLarge) {
		t.Errorf("expected ErrAudioTooLarge, got %v", err)
	}
}

func TestIsInputError(t *testing.T) {
	if !IsInputError(ErrEmptyText) {
		t.Error("expected ErrEmptyText to classify as input error")
	}
	if IsInputError(errors.New("boom")) {
		t.Error("expected unrelated error not to classify as input error")
	}
}
