package capture

import (
	"regexp"
	"strconv"
	"strings"

	"multitalk-demo/internal/domain/model"
)

// Two-tier tqdm scraping. The rich pattern covers the canonical bar line
//   45%|███       | 12/30 [00:12<00:18, 2.50it/s]
// and the bare pattern catches any percentage so unrecognized bar variants
// still degrade to a usable number instead of vanishing.
var (
	richPattern = regexp.MustCompile(`(\d+)%\|[█▉▊▋▌▍▎▏ ]*\|\s*(\d+)/(\d+)\s*\[([^\]]+)<([^\]]+),\s*([^\]]+)\]`)
	barePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
)

// progressIndicators route a line into progress parsing at all; anything
// else is a log line.
var progressIndicators = []string{"%", "it/s", "step", "epoch"}

func looksLikeProgress(line string) bool {
	lower := strings.ToLower(line)
	for _, indicator := range progressIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// ParseLine classifies one output line. It returns the parsed update and
// the matched tier ("rich" or "bare"), or ok=false for a plain log line.
func ParseLine(line string) (info model.ProgressInfo, tier string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return model.ProgressInfo{}, "", false
	}

	if m := richPattern.FindStringSubmatch(line); m != nil {
		percentage, _ := strconv.ParseFloat(m[1], 64)
		current, _ := strconv.Atoi(m[2])
		total, _ := strconv.Atoi(m[3])
		return model.ProgressInfo{
			Percentage:  percentage,
			CurrentStep: current,
			TotalSteps:  total,
			ETA:         m[5],
			Rate:        strings.TrimSpace(m[6]),
			Description: line,
			ElapsedTime: parseElapsed(m[4]),
		}, "rich", true
	}

	if m := barePattern.FindStringSubmatch(line); m != nil {
		percentage, _ := strconv.ParseFloat(m[1], 64)
		return model.ProgressInfo{
			Percentage:  percentage,
			Description: line,
		}, "bare", true
	}

	return model.ProgressInfo{}, "", false
}

// parseElapsed converts "MM:SS", "HH:MM:SS" or bare seconds (optionally with
// a trailing unit letter, e.g. "12s") to seconds. Unparseable input is 0.
func parseElapsed(s string) float64 {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		switch len(parts) {
		case 2:
			mins, err1 := strconv.Atoi(parts[0])
			secs, err2 := strconv.Atoi(parts[1])
			if err1 != nil || err2 != nil {
				return 0
			}
			return float64(mins*60 + secs)
		case 3:
			hours, err1 := strconv.Atoi(parts[0])
			mins, err2 := strconv.Atoi(parts[1])
			secs, err3 := strconv.Atoi(parts[2])
			if err1 != nil || err2 != nil || err3 != nil {
				return 0
			}
			return float64(hours*3600 + mins*60 + secs)
		default:
			return 0
		}
	}
	v, err := strconv.ParseFloat(strings.TrimRight(s, "s"), 64)
	if err != nil {
		return 0
	}
	return v
}
