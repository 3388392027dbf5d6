package table

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
)

// ValidateLang checks that tag is a well-formed BCP 47 language tag.
// Well-formed tags with unregistered subtags, such as "cz", are accepted.
// The tag is used verbatim as a column prefix, so callers keep it unchanged.
func ValidateLang(tag string) error {
	_, err := language.Parse(tag)
	var unknown language.ValueError
	if err == nil || errors.As(err, &unknown) {
		return nil
	}
	return &Error{
		Code:    ErrCodeInvalidArgument,
		Message: fmt.Sprintf("invalid language tag %q: %v", tag, err),
		Key:     tag,
	}
}

// LangKey rewrites a language-variant key. A key ending in "_" becomes
// "<lang>_<key without the trailing _>"; other keys are returned unchanged.
// Rewriting a variant key without a language is an INVALID_ARGUMENT error.
func LangKey(key, lang string) (string, error) {
	if !strings.HasSuffix(key, "_") {
		return key, nil
	}
	if lang == "" {
		return "", &Error{
			Code:    ErrCodeInvalidArgument,
			Message: fmt.Sprintf("key %q is a language variant, set a language first", key),
			Key:     key,
		}
	}
	return lang + "_" + strings.TrimSuffix(key, "_"), nil
}

// GetterName returns the getter a key resolves to: "Get" followed by the key
// with its first letter upper-cased, so "title" maps to "GetTitle".
func GetterName(key string) string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return "Get" + key
	}
	return "Get" + string(unicode.ToUpper(r)) + key[size:]
}
