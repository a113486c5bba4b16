package pii

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Auremas/voxanalyze-mvp/internal/domain/entities"
	pkgai "github.com/Auremas/voxanalyze-mvp/pkg/ai"
)

// fakeGenerator scripts per-model responses and records call order.
type fakeGenerator struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (f *fakeGenerator) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	f.calls = append(f.calls, model)
	if err := f.errs[model]; err != nil {
		return "", err
	}
	return f.responses[model], nil
}

func testTranscript() entities.Transcript {
	return entities.Transcript{
		Text: "Laba diena, mano kodas 12345678901. Ačiū už pagalbą.",
		Segments: []entities.Segment{
			{Speaker: "A", Text: "Laba diena, mano kodas 12345678901.", StartTime: 0, EndTime: 4},
			{Speaker: "B", Text: "Ačiū už pagalbą.", StartTime: 4, EndTime: 6},
		},
	}
}

func TestMaskTranscriptFirstModelSucceeds(t *testing.T) {
	gen := &fakeGenerator{
		responses: map[string]string{
			"model-a": "Laba diena, mano kodas [PERSON_CODE]. Ačiū už pagalbą.",
		},
	}
	m := NewMasker(gen, []string{"model-a", "model-b"}, time.Second, DefaultTokens(), zap.NewNop())

	masked := m.MaskTranscript(context.Background(), testTranscript())

	if masked.Text != "Laba diena, mano kodas [PERSON_CODE]. Ačiū už pagalbą." {
		t.Errorf("unexpected masked text %q", masked.Text)
	}
	if len(gen.calls) != 1 || gen.calls[0] != "model-a" {
		t.Errorf("expected single call to model-a, got %v", gen.calls)
	}
	// Segment with PII is regex-masked, clean segment kept verbatim.
	if masked.Segments[0].Text != "Laba diena, mano kodas [PERSON_CODE]." {
		t.Errorf("unexpected segment text %q", masked.Segments[0].Text)
	}
	if masked.Segments[1].Text != "Ačiū už pagalbą." {
		t.Errorf("clean segment changed: %q", masked.Segments[1].Text)
	}
	if masked.Segments[0].Speaker != "A" || masked.Segments[1].EndTime != 6 {
		t.Error("segment metadata not preserved")
	}
}

func TestMaskTranscriptFallsThroughCandidates(t *testing.T) {
	gen := &fakeGenerator{
		errs: map[string]error{
			"model-a": fmt.Errorf("%w: model model-a", pkgai.ErrQuotaExceeded),
			"model-b": fmt.Errorf("%w: model model-b", pkgai.ErrOverloaded),
		},
		responses: map[string]string{
			"model-c": "mano kodas [PERSON_CODE]",
		},
	}
	m := NewMasker(gen, []string{"model-a", "model-b", "model-c"}, time.Second, DefaultTokens(), zap.NewNop())

	masked := m.MaskTranscript(context.Background(), entities.Transcript{Text: "mano kodas 12345678901"})

	if masked.Text != "mano kodas [PERSON_CODE]" {
		t.Errorf("unexpected masked text %q", masked.Text)
	}
	want := []string{"model-a", "model-b", "model-c"}
	if len(gen.calls) != 3 {
		t.Fatalf("expected 3 attempts, got %v", gen.calls)
	}
	for i, model := range want {
		if gen.calls[i] != model {
			t.Errorf("attempt %d: got %s, want %s", i, gen.calls[i], model)
		}
	}
}

func TestMaskTranscriptAllModelsFailFallsBackToRegex(t *testing.T) {
	gen := &fakeGenerator{
		errs: map[string]error{
			"model-a": errors.New("boom"),
			"model-b": errors.New("boom"),
		},
	}
	m := NewMasker(gen, []string{"model-a", "model-b"}, time.Second, DefaultTokens(), zap.NewNop())

	in := testTranscript()
	got := m.MaskTranscript(context.Background(), in)
	want := NewRegexMasker(DefaultTokens()).MaskTranscript(in)

	if got.Text != want.Text {
		t.Errorf("fallback text %q, want regex result %q", got.Text, want.Text)
	}
	for i := range want.Segments {
		if got.Segments[i].Text != want.Segments[i].Text {
			t.Errorf("segment %d: %q, want %q", i, got.Segments[i].Text, want.Segments[i].Text)
		}
	}
	if strings.Contains(got.Text, "12345678901") {
		t.Error("person code leaked through fallback")
	}
}

func TestMaskTranscriptEmptyModelOutputTriesNext(t *testing.T) {
	gen := &fakeGenerator{
		responses: map[string]string{
			"model-a": "   ",
			"model-b": "mano kodas [PERSON_CODE]",
		},
	}
	m := NewMasker(gen, []string{"model-a", "model-b"}, time.Second, DefaultTokens(), zap.NewNop())

	masked := m.MaskTranscript(context.Background(), entities.Transcript{Text: "mano kodas 12345678901"})
	if masked.Text != "mano kodas [PERSON_CODE]" {
		t.Errorf("unexpected masked text %q", masked.Text)
	}
	if len(gen.calls) != 2 {
		t.Errorf("expected 2 attempts, got %v", gen.calls)
	}
}

func TestMaskTranscriptStripsCodeFences(t *testing.T) {
	gen := &fakeGenerator{
		responses: map[string]string{
			"model-a": "```text\nmano kodas [PERSON_CODE]\n```",
		},
	}
	m := NewMasker(gen, []string{"model-a"}, time.Second, DefaultTokens(), zap.NewNop())

	masked := m.MaskTranscript(context.Background(), entities.Transcript{Text: "mano kodas 12345678901"})
	if masked.Text != "mano kodas [PERSON_CODE]" {
		t.Errorf("unexpected masked text %q", masked.Text)
	}
}

func TestMaskTranscriptNoGeneratorUsesRegex(t *testing.T) {
	m := NewMasker(nil, nil, time.Second, DefaultTokens(), zap.NewNop())

	masked := m.MaskTranscript(context.Background(), entities.Transcript{Text: "kodas 12345678901"})
	if masked.Text != "kodas [PERSON_CODE]" {
		t.Errorf("unexpected masked text %q", masked.Text)
	}
}

func TestMaskTranscriptEmptyTextUsesRegex(t *testing.T) {
	gen := &fakeGenerator{}
	m := NewMasker(gen, []string{"model-a"}, time.Second, DefaultTokens(), zap.NewNop())

	masked := m.MaskTranscript(context.Background(), entities.Transcript{Text: "  "})
	if len(gen.calls) != 0 {
		t.Errorf("model called for empty transcript: %v", gen.calls)
	}
	if masked.Text != "  " {
		t.Errorf("unexpected text %q", masked.Text)
	}
}
