package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var labelAliases = map[string]string{
	"trial.StepError":    "Workload step failure",
	"sink.Error":         "Measurement sink failure",
	"errors.errorString": "Error",
	"fmt.wrapError":      "Error",
}

// ErrorLabel returns a short human readable label for err, suitable for
// grouping failures in reports. Context errors are recognized through
// wrapping; other errors are labelled by their dynamic type.
func ErrorLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "Context canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "Context deadline exceeded"
	}
	return TypeLabel(fmt.Sprintf("%T", err))
}

// TypeLabel turns a Go type name such as "*sink.Error" into a label.
func TypeLabel(typeName string) string {
	cleaned := strings.TrimPrefix(strings.TrimSpace(typeName), "*")
	if cleaned == "" {
		return "Unknown error"
	}
	if idx := strings.LastIndex(cleaned, "/"); idx != -1 {
		cleaned = cleaned[idx+1:]
	}
	if alias, ok := labelAliases[cleaned]; ok {
		return alias
	}

	pkg, name := "", cleaned
	if idx := strings.Index(name, "."); idx != -1 {
		pkg, name = name[:idx], name[idx+1:]
	}
	pretty := splitWords(name)
	if pretty == "" {
		pretty = name
	}
	if pkg != "" && pkg != "main" {
		return fmt.Sprintf("%s (%s)", pretty, pkg)
	}
	return pretty
}

// splitWords breaks a CamelCase identifier into capitalized words, keeping
// acronyms intact: "HTTPError" -> "HTTP Error".
func splitWords(name string) string {
	runes := []rune(name)
	var words []string
	start := 0
	flush := func(end int) {
		if end <= start {
			return
		}
		w := string(runes[start:end])
		if strings.ToUpper(w) != w {
			lower := []rune(strings.ToLower(w))
			lower[0] = unicode.ToUpper(lower[0])
			w = string(lower)
		}
		words = append(words, w)
		start = end
	}
	for i := 1; i < len(runes); i++ {
		r, prev := runes[i], runes[i-1]
		nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		switch {
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower)):
			flush(i)
		case unicode.IsDigit(r) && !unicode.IsDigit(prev):
			flush(i)
		}
	}
	flush(len(runes))
	return strings.Join(words, " ")
}
