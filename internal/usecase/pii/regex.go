// Package pii detects and masks personally identifiable information in
// call transcripts and generated summaries.
//
// Detection runs in two stages: an AI-assisted pass for unstructured PII
// (personal names and surnames that no pattern can reliably catch), and
// a deterministic regex pass for structured PII. The regex pass is also
// the guaranteed fallback when every AI candidate model fails, and the
// redaction layer applied to generated summaries before persistence.
package pii

import (
	"regexp"

	"github.com/Auremas/voxanalyze-mvp/internal/domain/entities"
)

// rule pairs a compiled pattern with its replacement placeholder.
type rule struct {
	re    *regexp.Regexp
	token string
}

// Rule application order is significant: digit-run rules are anchored on
// word boundaries so an 11-digit person code is never split by the 8-10
// digit phone rule, and placeholders emitted by earlier rules contain no
// digits or '@' so later rules (and repeated application) never re-match
// them.
var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// International numbers with a country-code prefix, parenthesized
	// area codes, and bare runs of 8-10 digits. Bare runs rely on word
	// boundaries so longer digit runs (person codes, card numbers) pass
	// through untouched for the later rules.
	phonePattern = regexp.MustCompile(`\+\d{1,3}(?:[ \-]?\d{2,5}){1,5}\b|\(\d{1,4}\)[ \-]?\d{5,8}\b|\b\d{8,10}\b`)

	// National person code: 6 digits, optional hyphen, 5 digits.
	personCodePattern = regexp.MustCompile(`\b\d{6}-?\d{5}\b`)

	// Payment card: four groups of four digits, optionally separated.
	cardPattern = regexp.MustCompile(`\b\d{4}(?:[ \-]?\d{4}){3}\b`)

	// IBAN-shaped token or a bare 16-20 digit run. A bare 16-digit run
	// is already consumed by the card rule above.
	accountPattern = regexp.MustCompile(`\b[A-Z]{2}\d{10,30}\b|\b\d{16,20}\b`)
)

// RegexMasker is the deterministic, pattern-based PII masker. It is a
// pure transform with no I/O and is safe for unlimited concurrent use.
type RegexMasker struct {
	rules []rule
}

// NewRegexMasker builds a masker emitting the given placeholder tokens
func NewRegexMasker(tokens Tokens) *RegexMasker {
	return &RegexMasker{
		rules: []rule{
			{emailPattern, tokens.Email},
			{phonePattern, tokens.Phone},
			{personCodePattern, tokens.PersonCode},
			{cardPattern, tokens.CardNumber},
			{accountPattern, tokens.AccountNumber},
		},
	}
}

// MaskText replaces every structured PII occurrence with its placeholder.
// Masking is idempotent: placeholders are never re-matched.
func (m *RegexMasker) MaskText(text string) string {
	for _, r := range m.rules {
		text = r.re.ReplaceAllString(text, r.token)
	}
	return text
}

// MaskTranscript returns a copy of the transcript with the top-level text
// and every segment text masked. Segments are masked in isolation rather
// than sliced out of the masked top-level string, so segment masking never
// depends on alignment with the full text.
func (m *RegexMasker) MaskTranscript(t entities.Transcript) entities.Transcript {
	masked := t
	masked.Text = m.MaskText(t.Text)
	masked.Segments = make([]entities.Segment, len(t.Segments))
	for i, s := range t.Segments {
		s.Text = m.MaskText(s.Text)
		masked.Segments[i] = s
	}
	return masked
}
