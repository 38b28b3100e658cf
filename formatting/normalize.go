package formatting

import (
	"regexp"
	"strings"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

var speakerAliases = map[string]string{
	"agent":     "Agent",
	"csr":       "Agent",
	"rep":       "Agent",
	"customer":  "Customer",
	"caller":    "Customer",
	"system":    "System",
	"ivr":       "System",
	"voicemail": "Voicemail",
	"vm":        "Voicemail",
}

// NormalizeTranscriptText collapses runs of whitespace left by transcription.
func NormalizeTranscriptText(raw string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(raw, " "))
}

// NormalizeSpeaker maps common speaker labels onto the names the viewer
// colours. Unknown speakers are kept as written.
func NormalizeSpeaker(raw string) string {
	s := NormalizeTranscriptText(raw)
	if alias, ok := speakerAliases[strings.ToLower(strings.TrimSuffix(s, ":"))]; ok {
		return alias
	}
	return s
}

var phoneDigits = regexp.MustCompile(`\D`)

// NormalizePhone renders ten-digit US numbers as 770-555-2847. Anything else
// is returned trimmed.
func NormalizePhone(raw string) string {
	digits := phoneDigits.ReplaceAllString(raw, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return strings.TrimSpace(raw)
	}
	return digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
}

// ShortLocationName drops the franchise prefix: "Aire Serv of Smyrna" -> "Smyrna".
func ShortLocationName(name string) string {
	trimmed := strings.TrimSpace(name)
	if i := strings.Index(strings.ToLower(trimmed), " of "); i >= 0 {
		return strings.TrimSpace(trimmed[i+4:])
	}
	return trimmed
}
