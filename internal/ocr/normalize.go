package ocr

import "regexp"

var (
	dashRe        = regexp.MustCompile("[‐-―]")
	aposRe        = regexp.MustCompile("[‘’ʼ]")
	quoteRe       = regexp.MustCompile("[“”]")
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes Unicode punctuation variants commonly produced by
// OCR (typographic dashes and quotes) and collapses whitespace runs into
// single spaces. Idempotent.
func Normalize(text string) string {
	text = dashRe.ReplaceAllString(text, "-")
	text = aposRe.ReplaceAllString(text, "'")
	text = quoteRe.ReplaceAllString(text, `"`)
	return whitespaceRe.ReplaceAllString(text, " ")
}
