package pii

import "regexp"

// Secondary patterns applied to free-form generated text (summaries,
// persisted error messages) that may echo identifiers back. Unlike the
// transcript rules these also catch capitalized name pairs, which is
// too aggressive for transcripts but safe for short derived text.
var (
	redactDigitRunPattern = regexp.MustCompile(`\b\d{11}\b`)
	redactIBANPattern     = regexp.MustCompile(`\b[A-Z]{2}\d{10,30}\b`)
	// Runs of two to four capitalized words. The whole run is consumed
	// so a preceding capitalized non-name word cannot pair up with a
	// first name and leave the surname exposed.
	redactNamePattern = regexp.MustCompile(`(^|[^\p{L}])((?:\p{Lu}\p{Ll}+[ \t]){1,3}\p{Lu}\p{Ll}+)`)
)

// Redactor scrubs PII from text derived from confidential records
// before it leaves the pipeline.
type Redactor struct {
	tokens Tokens
	rules  []rule
}

func NewRedactor(tokens Tokens) *Redactor {
	return &Redactor{
		tokens: tokens,
		rules: []rule{
			{emailPattern, tokens.Email},
			{phonePattern, tokens.Phone},
			{redactDigitRunPattern, tokens.PersonCode},
			{redactIBANPattern, tokens.AccountNumber},
		},
	}
}

// Redact replaces identifiers and capitalized Name Surname pairs with
// placeholder tokens. Placeholder contents are upper-case so a second
// pass leaves already redacted text unchanged.
func (r *Redactor) Redact(text string) string {
	for _, rl := range r.rules {
		text = rl.re.ReplaceAllString(text, rl.token)
	}
	return redactNamePattern.ReplaceAllString(text, "${1}"+r.tokens.FullName)
}
