package pii

import "testing"

func TestRedact(t *testing.T) {
	r := NewRedactor(TokensForLocale("lt"))

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			// The leading capitalized word is consumed with the name
			// run so the surname cannot pair off and survive.
			name: "name run with leading capitalized word",
			in:   "Klientas Jonas Jonaitis prašė grąžinimo.",
			want: "[VARDAS PAVARDĖ] prašė grąžinimo.",
		},
		{
			name: "name pair mid sentence",
			in:   "skambino ponas Jonas Jonaitis dėl sutarties",
			want: "skambino ponas [VARDAS PAVARDĖ] dėl sutarties",
		},
		{
			name: "name pair at start",
			in:   "Ona Onaitė skambino dėl sąskaitos.",
			want: "[VARDAS PAVARDĖ] skambino dėl sąskaitos.",
		},
		{
			name: "person code",
			in:   "klientas nurodė kodą 12345678901 telefonu",
			want: "klientas nurodė kodą [PERSON_CODE] telefonu",
		},
		{
			name: "email",
			in:   "susisiekti adresu jonas@example.com",
			want: "susisiekti adresu [EMAIL]",
		},
		{
			name: "iban",
			in:   "grąžinimas į LT601010012345678901",
			want: "grąžinimas į [ACCOUNT_NUMBER]",
		},
		{
			name: "no pii unchanged",
			in:   "klientas liko patenkintas aptarnavimu",
			want: "klientas liko patenkintas aptarnavimu",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.Redact(tc.in); got != tc.want {
				t.Errorf("Redact(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRedactIdempotent(t *testing.T) {
	r := NewRedactor(TokensForLocale("lt"))

	in := "Jonas Jonaitis, kodas 12345678901, paštas jonas@example.com"
	once := r.Redact(in)
	twice := r.Redact(once)
	if once != twice {
		t.Errorf("redaction not idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
}
