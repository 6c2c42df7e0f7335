package etl

import (
	"fmt"
	"regexp"
	"strings"
)

var statusCodePattern = regexp.MustCompile(`\b([45]\d\d)\b`)

func errorKind(message string) string {
	if code := statusCodePattern.FindString(message); code != "" {
		if code[0] == '5' {
			return code + " Server Error"
		}
		return code + " Client Error"
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "timeout"):
		return "Timeout"
	case strings.Contains(lower, "server"):
		return "Server Error"
	case strings.Contains(lower, "connection"):
		return "Connection Error"
	default:
		return "Unknown Error"
	}
}

// SummarizeErrors groups run errors by kind into "N× Kind" lines, in the order
// each kind was first seen. It returns "" for no errors.
func SummarizeErrors(errs []RunError) string {
	if len(errs) == 0 {
		return ""
	}

	counts := make(map[string]int)
	var order []string

	for _, err := range errs {
		kind := errorKind(err.Message)
		if counts[kind] == 0 {
			order = append(order, kind)
		}
		counts[kind]++
	}

	lines := make([]string, 0, len(order))
	for _, kind := range order {
		lines = append(lines, fmt.Sprintf("%d× %s", counts[kind], kind))
	}

	return strings.Join(lines, "\n")
}
