package pipeline

import (
	"regexp"
	"strings"
)

var (
	messageFieldRe = regexp.MustCompile(`"message"\s*:\s*"([^"]+)"`)
	uncaughtRe     = regexp.MustCompile(`^Uncaught\s+\w+Error:\s*`)
	errorPrefixRe  = regexp.MustCompile(`^Error:\s*`)
)

const maxErrorLength = 200

// FormatPipelineError condenses a raw failure into a message fit for the
// processing_error column: stack frames dropped, embedded API messages
// extracted, prefixes stripped, capped at 200 characters.
func FormatPipelineError(raw string) string {
	lines := strings.Split(raw, "\n")
	meaningful := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "at ") {
			continue
		}
		meaningful = append(meaningful, line)
	}

	joined := strings.Join(meaningful, "\n")
	if match := messageFieldRe.FindStringSubmatch(joined); match != nil {
		return match[1]
	}

	first := raw
	for _, line := range meaningful {
		if strings.TrimSpace(line) != "" {
			first = line
			break
		}
	}

	first = uncaughtRe.ReplaceAllString(first, "")
	first = errorPrefixRe.ReplaceAllString(first, "")
	first = strings.TrimSpace(first)

	if runes := []rune(first); len(runes) > maxErrorLength {
		return string(runes[:maxErrorLength])
	}
	return first
}
