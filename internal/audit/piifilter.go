package audit

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)
)

// PIIFilter redacts sensitive material before records leave the
// process. Field and header names match case-insensitively by
// substring; free text is scrubbed for email, SSN, and card shapes.
type PIIFilter struct {
	fields      []string
	headers     []string
	replacement string
}

func NewPIIFilter(fields, headers []string, replacement string) *PIIFilter {
	if replacement == "" {
		replacement = "[REDACTED]"
	}
	lower := func(in []string) []string {
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = strings.ToLower(s)
		}
		return out
	}
	return &PIIFilter{
		fields:      lower(fields),
		headers:     lower(headers),
		replacement: replacement,
	}
}

func (f *PIIFilter) sensitiveField(name string) bool {
	name = strings.ToLower(name)
	for _, s := range f.fields {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

func (f *PIIFilter) sensitiveHeader(name string) bool {
	name = strings.ToLower(name)
	for _, s := range f.headers {
		if name == s {
			return true
		}
	}
	return false
}

// ScrubText replaces email, SSN, and card number shapes in free text.
func (f *PIIFilter) ScrubText(s string) string {
	s = emailPattern.ReplaceAllString(s, "[EMAIL_REDACTED]")
	s = ssnPattern.ReplaceAllString(s, "[SSN_REDACTED]")
	s = cardPattern.ReplaceAllString(s, "[CARD_REDACTED]")
	return s
}

// FilterFields walks a decoded body and redacts sensitive entries at
// any depth. The input is not modified.
func (f *PIIFilter) FilterFields(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for key, value := range data {
		if f.sensitiveField(key) {
			out[key] = f.replacement
			continue
		}
		out[key] = f.filterValue(value)
	}
	return out
}

func (f *PIIFilter) filterValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return f.FilterFields(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = f.filterValue(item)
		}
		return out
	case string:
		return f.ScrubText(v)
	default:
		return v
	}
}

// FilterHeaders redacts deny-listed header values.
func (f *PIIFilter) FilterHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		if f.sensitiveHeader(name) {
			out[name] = f.replacement
		} else {
			out[name] = value
		}
	}
	return out
}
