package pii

// Tokens is the placeholder vocabulary substituted for detected PII.
// The set is configuration, not hardcoded literals: deployments serving
// another locale swap the token set without touching the detectors.
type Tokens struct {
	Name          string
	Surname       string
	PersonCode    string
	Email         string
	Phone         string
	Address       string
	CardNumber    string
	AccountNumber string

	// FullName replaces two-word capitalized name patterns in the
	// summary redaction pass.
	FullName string
}

// DefaultTokens returns the standard placeholder set
func DefaultTokens() Tokens {
	return Tokens{
		Name:          "[NAME]",
		Surname:       "[SURNAME]",
		PersonCode:    "[PERSON_CODE]",
		Email:         "[EMAIL]",
		Phone:         "[PHONE]",
		Address:       "[ADDRESS]",
		CardNumber:    "[CARD_NUMBER]",
		AccountNumber: "[ACCOUNT_NUMBER]",
		FullName:      "[NAME SURNAME]",
	}
}

// TokensForLocale returns the placeholder set for a locale code.
// Unknown locales fall back to the default set.
func TokensForLocale(locale string) Tokens {
	tokens := DefaultTokens()
	switch locale {
	case "lt":
		tokens.FullName = "[VARDAS PAVARDĖ]"
	}
	return tokens
}
