package tenancy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lower-cases s, folds diacritics and strips it to [a-z0-9-].
// Whitespace and dashes separate words; every other character is removed,
// so "bob.jones" becomes "bobjones". Runs of separators collapse to one
// dash and leading or trailing dashes are dropped. The result may be empty.
func Slugify(s string) string {
	folded, _, err := transform.String(foldMarks, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	dash := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			dash = true
		}
	}
	return b.String()
}

// baseSlug picks the slug source for a user: display name first, then the
// local part of the email address.
func baseSlug(name, email string) string {
	if slug := Slugify(name); slug != "" {
		return slug
	}
	local, _, _ := strings.Cut(email, "@")
	if slug := Slugify(local); slug != "" {
		return slug
	}
	return "tenant"
}

// DefaultName returns the display name used when none was supplied.
func DefaultName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
