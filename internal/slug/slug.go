// Package slug turns titles into URL-safe identifiers.
package slug

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxAttempts is how many numbered suffixes Unique tries before falling
// back to a timestamp suffix.
const MaxAttempts = 100

// ErrEmpty is returned when text has no characters that survive slugging.
var ErrEmpty = errors.New("text produces an empty slug")

var (
	valid = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	now   = time.Now
)

// Options tune Make.
type Options struct {
	Separator     rune
	MaxLength     int
	KeepCase      bool
	RemoveNumbers bool
}

// DefaultOptions are used by Slugify.
var DefaultOptions = Options{Separator: '-', MaxLength: 100}

// Slugify converts text with DefaultOptions: "Héllo, World!" → "hello-world".
func Slugify(text string) string {
	return Make(text, DefaultOptions)
}

// Make converts text to a slug. Accents are stripped, whitespace and
// underscore runs become the separator, other symbols are dropped, and the
// result is cut to MaxLength without a trailing separator.
func Make(text string, opts Options) string {
	if opts.Separator == 0 {
		opts.Separator = '-'
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultOptions.MaxLength
	}

	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		strings.TrimSpace(text),
	)
	if err != nil {
		stripped = text
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range stripped {
		switch {
		case unicode.IsSpace(r) || r == '_' || r == opts.Separator:
			pendingSep = b.Len() > 0
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if opts.RemoveNumbers && unicode.IsDigit(r) {
				continue
			}
			if pendingSep {
				b.WriteRune(opts.Separator)
				pendingSep = false
			}
			if !opts.KeepCase {
				r = unicode.ToLower(r)
			}
			b.WriteRune(r)
		}
	}

	s := b.String()
	if len(s) > opts.MaxLength {
		s = strings.TrimRight(s[:opts.MaxLength], string(opts.Separator))
	}
	return s
}

// Exists reports whether a slug is already taken.
type Exists func(ctx context.Context, slug string) (bool, error)

// Unique slugs text and, if the slug is taken, tries slug-1 through
// slug-MaxAttempts, then slug-<unix millis>.
func Unique(ctx context.Context, text string, exists Exists) (string, error) {
	base := Slugify(text)
	if base == "" {
		return "", ErrEmpty
	}

	candidate := base
	for n := 1; ; n++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		if n > MaxAttempts {
			return base + "-" + strconv.FormatInt(now().UnixMilli(), 10), nil
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
}

// Unslugify turns "hello-world" into "Hello World".
func Unslugify(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "-", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// IsValid reports whether s is lowercase alphanumerics joined by single hyphens.
func IsValid(s string) bool {
	return valid.MatchString(s)
}
