package sched

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	hourToken   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*h`)
	minuteToken = regexp.MustCompile(`(\d+)\s*m`)
)

// ParseEstimate converts a free-form duration expression into minutes.
//
// Accepted forms: a plain number of minutes ("45"), hour tokens ("1.5h"),
// minute tokens ("90m"), or a combination ("1h 30m"). All matched tokens are
// summed. Anything unparseable, including empty input, yields the 60-minute
// default; this function never fails a scheduling run.
func ParseEstimate(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return defaultEstimateMinutes
	}

	total := 0.0
	matched := false
	for _, m := range hourToken.FindAllStringSubmatch(s, -1) {
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		total += f * 60
		matched = true
	}
	for _, m := range minuteToken.FindAllStringSubmatch(s, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		total += float64(n)
		matched = true
	}

	if !matched {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
			return int(f)
		}
		return defaultEstimateMinutes
	}
	if total <= 0 {
		return defaultEstimateMinutes
	}
	return int(total)
}
