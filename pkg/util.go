package pkg

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"unicode"
	"unsafe"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// BytesToString converts bytes slice to a string without extra allocation
func BytesToString(buf []byte) string {
	return *(*string)(unsafe.Pointer(&buf))
}

// GenerateRandomString returns a URL-safe, base64 encoded
// securely generated random string, s bytes of entropy long.
func GenerateRandomString(s int) (string, error) {
	if s <= 0 {
		return "", errors.New("random string size must be positive")
	}
	b := make([]byte, s)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// StripDiacritics folds "Crème Brûlée" into "Creme Brulee".
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify builds a URL slug: lower case ascii letters and digits separated by single dashes.
func Slugify(s string) string {
	s = strings.ToLower(StripDiacritics(s))

	var sb strings.Builder
	dash := false
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
			dash = false
		case sb.Len() > 0 && !dash:
			sb.WriteByte('-')
			dash = true
		}
	}

	return strings.TrimSuffix(sb.String(), "-")
}

// TruncateWords keeps the first n words of s, appending an ellipsis when something was cut.
func TruncateWords(s string, n int) string {
	words := strings.Fields(s)
	if n <= 0 || len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + " …"
}
