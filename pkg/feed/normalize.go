package feed

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode"
)

// NormalizeTitle lower-cases, trims, collapses internal whitespace, and
// strips every rune that is not a letter, digit, or space. Letters include
// CJK, so Chinese titles survive intact. The result is idempotent: applying
// the function twice yields the same string.
func NormalizeTitle(title string) string {
	var b strings.Builder
	pendingSpace := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return b.String()
}

// TitleHash returns the hex MD5 of the normalized title. Titles that differ
// only in case, punctuation, or whitespace hash identically.
func TitleHash(title string) string {
	sum := md5.Sum([]byte(NormalizeTitle(title)))
	return hex.EncodeToString(sum[:])
}

// Key builds the cross-run identity key for a story on a platform.
func Key(platform, title string) string {
	return platform + ":" + TitleHash(title)
}
