package feature_extractor

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var typographicFolder = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\u00a0", " ",
	"\u2009", " ",
	"\u202f", " ",
	"\t", " ",
	"\u2264", "<=",
	"\u2265", ">=",
	"\u2014", "\u2013",
	"\u2212", "-",
)

// Normalize prepares protocol text for pattern matching: NFC composition,
// unified line endings and a small set of typographic folds.  Office
// documents routinely carry decomposed accents and non-breaking spaces that
// would otherwise defeat the word-boundary patterns.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	return typographicFolder.Replace(norm.NFC.String(text))
}
