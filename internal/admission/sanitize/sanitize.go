// Package sanitize cleans and checks free-text form fields before they reach
// an email body or an AI prompt.
package sanitize

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	kgsanitize "github.com/kennygrant/sanitize"

	dErrors "folio/pkg/domain-errors"
)

// Kind classifies a field problem.
type Kind string

const (
	KindRequired     Kind = "REQUIRED_FIELD"
	KindTooShort     Kind = "TOO_SHORT"
	KindTooLong      Kind = "TOO_LONG"
	KindSpam         Kind = "SPAM_DETECTED"
	KindInvalidEmail Kind = "INVALID_EMAIL"
)

// Field is one named input with its bounds. Min and Max count runes;
// zero disables the bound.
type Field struct {
	Name     string
	Label    string
	Value    string
	Min      int
	Max      int
	Email    bool
	Optional bool
}

func (f Field) label() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// FieldError describes one failed check.
type FieldError struct {
	Field   string `json:"field"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Result carries sanitized values for clean fields and every error found.
type Result struct {
	Fields map[string]string
	Errors []FieldError
}

// Valid reports whether no field failed.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Err returns a VALIDATION_ERROR carrying every problem, or nil when valid.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	details := make([]dErrors.Detail, len(r.Errors))
	for i, fe := range r.Errors {
		details[i] = dErrors.Detail{Field: fe.Field, Kind: string(fe.Kind), Message: fe.Message}
	}
	return dErrors.Invalid(r.Errors[0].Message, details)
}

// stripped never survives Clean.
const stripped = `<>'"&\/(){}[]`

var emailPattern = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_\x60{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

var spamPhrases = []string{
	"viagra", "cialis", "pharmacy",
	"make money fast",
	"click here", "visit now",
	"nigerian prince", "inheritance",
	"lottery", "winner", "free money", "bank transfer",
	"act now", "limited time",
}

var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)earn \$\d+`),
	regexp.MustCompile(`(?i)congratulations.*won`),
	regexp.MustCompile(`(?i)urgent.*reply`),
}

// Clean strips markup and unsafe punctuation, collapses whitespace and
// truncates to max runes (max <= 0 means no limit). Clean(Clean(s)) == Clean(s).
func Clean(raw string, max int) string {
	return truncate(normalize(raw), max)
}

// normalize is Clean without truncation.
func normalize(raw string) string {
	s := collapse(raw)
	s = html.UnescapeString(kgsanitize.HTML(s))
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(stripped, r) {
			return -1
		}
		return r
	}, s)
	return collapse(s)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:max]), " ")
}

// IsSpam reports whether text matches a known spam phrase or pattern.
func IsSpam(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range spamPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	for _, pattern := range spamPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// IsEmail reports whether s, after trimming, is a syntactically valid address.
func IsEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// Check sanitizes one field. The returned value is empty whenever errors are
// reported or an optional field was left blank.
func Check(f Field) (string, []FieldError) {
	if f.Email {
		return checkEmail(f)
	}

	cleaned := normalize(f.Value)
	if cleaned == "" {
		if f.Optional {
			return "", nil
		}
		return "", []FieldError{f.fail(KindRequired, "%s is required", f.label())}
	}

	var errs []FieldError
	length := utf8.RuneCountInString(cleaned)
	if f.Min > 0 && length < f.Min {
		errs = append(errs, f.fail(KindTooShort, "%s must be at least %d characters", f.label(), f.Min))
	}
	if f.Max > 0 && length > f.Max {
		errs = append(errs, f.fail(KindTooLong, "%s must not exceed %d characters", f.label(), f.Max))
	}
	if IsSpam(cleaned) {
		errs = append(errs, f.fail(KindSpam, "%s contains potentially inappropriate content", f.label()))
	}
	if len(errs) > 0 {
		return "", errs
	}
	return truncate(cleaned, f.Max), nil
}

func checkEmail(f Field) (string, []FieldError) {
	value := strings.TrimSpace(f.Value)
	switch {
	case value == "" && f.Optional:
		return "", nil
	case value == "":
		return "", []FieldError{f.fail(KindRequired, "%s is required", f.label())}
	case !emailPattern.MatchString(value):
		return "", []FieldError{f.fail(KindInvalidEmail, "Please provide a valid email address")}
	case f.Max > 0 && utf8.RuneCountInString(value) > f.Max:
		return "", []FieldError{f.fail(KindTooLong, "%s must not exceed %d characters", f.label(), f.Max)}
	}
	return strings.ToLower(value), nil
}

func (f Field) fail(kind Kind, format string, args ...any) FieldError {
	return FieldError{Field: f.Name, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validate checks every field and keeps errors in field order.
func Validate(fields ...Field) Result {
	res := Result{Fields: make(map[string]string, len(fields))}
	for _, f := range fields {
		value, errs := Check(f)
		if len(errs) > 0 {
			res.Errors = append(res.Errors, errs...)
			continue
		}
		if value != "" {
			res.Fields[f.Name] = value
		}
	}
	return res
}
