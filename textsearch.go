package omnio

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// TextSearch transforms descriptions between their presentation form
// and the normalised form stored in the desc_fts column. ToQueryString
// runs before storage and before matching; FromQueryString runs on the
// way back out.
//
// The default is the identity pair, for which the round-trip law
// FromQueryString(ToQueryString(s)) == s holds exactly.
type TextSearch interface {
	ToQueryString(s string) string
	FromQueryString(s string) string
}

// identityTextSearch stores descriptions verbatim.
type identityTextSearch struct{}

func (identityTextSearch) ToQueryString(s string) string   { return s }
func (identityTextSearch) FromQueryString(s string) string { return s }

// IdentityTextSearch returns the default identity normaliser.
func IdentityTextSearch() TextSearch {
	return identityTextSearch{}
}

// foldingTextSearch normalises to NFC and applies Unicode case folding,
// so searches match case-insensitively across scripts. Folding is
// lossy: FromQueryString returns the stored (folded) form rather than
// the original input.
type foldingTextSearch struct {
	caser cases.Caser
}

// FoldingTextSearch returns a Unicode NFC + case-folding normaliser.
func FoldingTextSearch() TextSearch {
	return &foldingTextSearch{caser: cases.Fold()}
}

func (f *foldingTextSearch) ToQueryString(s string) string {
	return f.caser.String(norm.NFC.String(s))
}

func (f *foldingTextSearch) FromQueryString(s string) string {
	return s
}
