package formatting

import (
	"strconv"
	"strings"
)

// Trend is the direction of a KPI or topic change.
type Trend string

const (
	TrendUp      Trend = "positive"
	TrendDown    Trend = "negative"
	TrendNeutral Trend = "neutral"
)

// ClassifyTrend reads the sign of a display trend such as "+15%" or "-8%".
func ClassifyTrend(trend string) Trend {
	t := strings.TrimSpace(trend)
	switch {
	case strings.HasPrefix(t, "+"):
		return TrendUp
	case strings.HasPrefix(t, "-"):
		return TrendDown
	default:
		return TrendNeutral
	}
}

// TrendValue parses the integer part of a display trend. Unparseable input is 0.
func TrendValue(trend string) int {
	t := strings.TrimSpace(trend)
	t = strings.TrimSuffix(t, "%")
	t = strings.TrimPrefix(t, "+")
	if i := strings.IndexByte(t, '.'); i >= 0 {
		t = t[:i]
	}
	n, err := strconv.Atoi(t)
	if err != nil {
		return 0
	}
	return n
}
