package formatting

import "strings"

// NormalizeReviewCategory maps a free-form review label from an import file
// onto the canonical category keys. Unrecognised labels come back lower-cased
// so validation can report them.
func NormalizeReviewCategory(label string) string {
	t := strings.ToLower(strings.TrimSpace(label))
	t = strings.NewReplacer("-", "_", " ", "_").Replace(t)
	switch {
	case t == "":
		return ""
	case strings.Contains(t, "script"), strings.Contains(t, "adherence"):
		return "low_script_adherence"
	case strings.Contains(t, "critical"), strings.Contains(t, "escalat"), strings.Contains(t, "angry"):
		return "critical"
	case strings.Contains(t, "sentiment"):
		return "low_sentiment"
	case strings.Contains(t, "opportunit"), strings.Contains(t, "upsell"):
		return "missed_opportunity"
	case strings.Contains(t, "missed"), strings.Contains(t, "voicemail"), strings.Contains(t, "no_answer"):
		return "missed_call"
	default:
		return t
	}
}
