package values

import (
	"github.com/tunnelkit/tunnelkit/internal/errs"
)

const (
	opTokenOf errs.Op = "values.TokenOf"
	minTokenLen       = 8
)

// Token is an opaque authentication secret. Stored as-is; Masked
// elides everything but the first and last four characters so that
// logs and renderings never show the full value.
type Token struct {
	s string
}

// TokenOf validates s and returns a Token, or a KindValidation error.
// A Token is optional at the call site (ServerSpec.Token is a
// pointer); when present it must be at least 8 characters.
func TokenOf(s string) (Token, error) {
	if len(s) < minTokenLen {
		return Token{}, errs.E(opTokenOf, errs.KindValidation,
			"token must be at least 8 characters")
	}
	return Token{s: s}, nil
}

// Reveal returns the raw secret value. Callers must not log or print
// the result; use Masked for any human-facing rendering.
func (t Token) Reveal() string { return t.s }

// Masked returns a display form that never leaks the interior, e.g.
// "s3cr…bcde" for a long token, or a fixed placeholder for short ones.
func (t Token) Masked() string {
	const shown = 4
	if len(t.s) <= shown*2 {
		return "****"
	}
	return t.s[:shown] + "…" + t.s[len(t.s)-shown:]
}

func (t Token) String() string { return t.Masked() }
