package pii

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Auremas/voxanalyze-mvp/internal/domain/entities"
	pkgai "github.com/Auremas/voxanalyze-mvp/pkg/ai"
)

// DefaultMaskTimeout bounds a single masking attempt against one model
const DefaultMaskTimeout = 90 * time.Second

// Generator is the external text-generation capability used for
// AI-assisted masking.
type Generator interface {
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

// Masker is the AI-assisted PII masker. It tries each candidate model
// once, in order, and falls back wholesale to the regex masker when all
// candidates fail. Masking never fails: a degraded (regex-only) result
// is always preferable to losing the transcript.
type Masker struct {
	gen     Generator
	models  []string
	timeout time.Duration
	tokens  Tokens
	regex   *RegexMasker
	logger  *zap.Logger
}

// NewMasker constructs an AI-assisted masker with a regex fallback
func NewMasker(gen Generator, models []string, timeout time.Duration, tokens Tokens, logger *zap.Logger) *Masker {
	if timeout <= 0 {
		timeout = DefaultMaskTimeout
	}
	return &Masker{
		gen:     gen,
		models:  models,
		timeout: timeout,
		tokens:  tokens,
		regex:   NewRegexMasker(tokens),
		logger:  logger,
	}
}

// MaskTranscript returns the transcript with all recognized PII replaced
// by placeholder tokens. The AI pass masks the full text in one call and
// segment texts are reconciled against it; segments whose text no longer
// appears verbatim in the masked output are masked independently with
// the regex rules.
func (m *Masker) MaskTranscript(ctx context.Context, t entities.Transcript) entities.Transcript {
	if m.gen == nil || len(m.models) == 0 || strings.TrimSpace(t.Text) == "" {
		return m.regex.MaskTranscript(t)
	}

	prompt := m.buildPrompt(t.Text)

	for _, model := range m.models {
		maskedText, err := m.tryModel(ctx, model, prompt)
		if err != nil {
			m.logModelFailure(model, err)
			continue
		}

		masked := t
		masked.Text = maskedText
		masked.Segments = m.reconcileSegments(t, maskedText)
		return masked
	}

	if m.logger != nil {
		m.logger.Warn("all masking model candidates failed, falling back to regex masking")
	}
	return m.regex.MaskTranscript(t)
}

// tryModel runs one candidate model under the attempt timeout.
// Empty output counts as failure so the next candidate gets a chance.
func (m *Masker) tryModel(ctx context.Context, model, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	out, err := m.gen.GenerateText(attemptCtx, model, prompt)
	if err != nil {
		return "", err
	}

	cleaned := cleanGeneratedText(out)
	if cleaned == "" {
		return "", fmt.Errorf("model %s returned empty text", model)
	}
	return cleaned, nil
}

// reconcileSegments maps the single masked blob back onto the segment
// structure. A segment whose text still appears verbatim in the masked
// output contained no PII and is kept as is. Any other segment was
// rewritten by the model somewhere, and since placeholder substitutions
// shift offsets unpredictably, the segment is regex-masked on its own
// rather than guessed back out of the blob.
func (m *Masker) reconcileSegments(orig entities.Transcript, maskedText string) []entities.Segment {
	segments := make([]entities.Segment, len(orig.Segments))
	for i, seg := range orig.Segments {
		if seg.Text != "" && !strings.Contains(maskedText, seg.Text) {
			seg.Text = m.regex.MaskText(seg.Text)
		}
		segments[i] = seg
	}
	return segments
}

func (m *Masker) buildPrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("You are a data-protection assistant. Replace every occurrence of ")
	sb.WriteString("personally identifiable information in the transcript below with ")
	sb.WriteString("the matching placeholder token:\n\n")

	for _, pair := range []struct{ category, token string }{
		{"personal first names", m.tokens.Name},
		{"surnames", m.tokens.Surname},
		{"national person codes (11 digits)", m.tokens.PersonCode},
		{"email addresses", m.tokens.Email},
		{"phone numbers", m.tokens.Phone},
		{"physical addresses", m.tokens.Address},
		{"payment card numbers", m.tokens.CardNumber},
		{"bank account numbers and IBANs", m.tokens.AccountNumber},
	} {
		sb.WriteString(fmt.Sprintf("- %s -> %s\n", pair.category, pair.token))
	}

	sb.WriteString("\nRules:\n")
	sb.WriteString("- Do NOT change any other words, punctuation or line breaks.\n")
	sb.WriteString("- Return ONLY the masked transcript text, no commentary, no markdown.\n\n")
	sb.WriteString("Transcript:\n")
	sb.WriteString(text)
	return sb.String()
}

func (m *Masker) logModelFailure(model string, err error) {
	if m.logger == nil {
		return
	}
	switch {
	case errors.Is(err, pkgai.ErrQuotaExceeded):
		m.logger.Warn("masking model quota exceeded, trying next candidate",
			zap.String("model", model))
	case errors.Is(err, pkgai.ErrOverloaded):
		m.logger.Warn("masking model overloaded, trying next candidate",
			zap.String("model", model))
	default:
		m.logger.Warn("masking model attempt failed, trying next candidate",
			zap.String("model", model),
			zap.Error(err))
	}
}

// cleanGeneratedText strips whitespace and markdown code fences the
// model may wrap around its output despite instructions.
func cleanGeneratedText(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// Drop an optional language tag on the fence line.
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && nl < 20 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	return s
}
