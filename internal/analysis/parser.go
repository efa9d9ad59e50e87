package analysis

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// The AI responses are free text with no guaranteed schema. Parsing is
// heuristic and deliberately forgiving: a line the parser cannot place is
// dropped, never an error.

const (
	// sectionPlaceholder fills any section the parse left empty so the UI
	// never renders a blank panel.
	sectionPlaceholder = "No information available."

	// minSectionLineRunes is the threshold below which an unlabeled line is
	// considered noise rather than section content.
	minSectionLineRunes = 10

	maxEvents         = 10
	maxEventDescRunes = 200
)

const (
	sectionRecentNews = iota
	sectionMajorEvents
	sectionValuation
	sectionCount
)

// parseSections splits a free-text response into the three narrative
// sections. Lines are assigned to the most recently seen header; bullet
// markers are stripped. When no header ever matches, the response is split
// into three equal contiguous chunks by line count. Empty sections are
// filled with a placeholder.
func parseSections(text string) (recentNews, majorEvents, valuation []string) {
	var sections [sectionCount][]string
	current := -1
	headerSeen := false

	lines := strings.Split(text, "\n")
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		bullet := isBullet(line)
		if !bullet {
			if idx := matchHeader(line); idx >= 0 {
				current = idx
				headerSeen = true
				continue
			}
		}

		if current < 0 {
			continue
		}

		content := stripBullet(line)
		if content == "" {
			continue
		}
		if bullet || len([]rune(content)) > minSectionLineRunes {
			sections[current] = append(sections[current], content)
		}
	}

	if !headerSeen {
		sections = splitThirds(lines)
	}

	for i := range sections {
		if len(sections[i]) == 0 {
			sections[i] = []string{sectionPlaceholder}
		}
	}

	return sections[sectionRecentNews], sections[sectionMajorEvents], sections[sectionValuation]
}

// matchHeader reports which section a header line opens, or -1.
// Headers are recognized by numeric prefix (1./2./3.) or by keyword.
func matchHeader(line string) int {
	lower := strings.ToLower(strings.TrimLeft(line, "#* "))

	switch {
	case strings.HasPrefix(lower, "1."):
		return sectionRecentNews
	case strings.HasPrefix(lower, "2."):
		return sectionMajorEvents
	case strings.HasPrefix(lower, "3."):
		return sectionValuation
	}

	switch {
	case strings.Contains(lower, "news"):
		return sectionRecentNews
	case strings.Contains(lower, "event"):
		return sectionMajorEvents
	case strings.Contains(lower, "valuation"), strings.Contains(lower, "assessment"):
		return sectionValuation
	}

	return -1
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "•") ||
		strings.HasPrefix(line, "-") ||
		strings.HasPrefix(line, "*")
}

func stripBullet(line string) string {
	line = strings.TrimLeft(line, "•-* ")
	return strings.TrimSpace(line)
}

// splitThirds is the fallback when no header matched: non-empty lines are
// divided into three equal contiguous chunks.
func splitThirds(lines []string) [sectionCount][]string {
	var sections [sectionCount][]string

	content := make([]string, 0, len(lines))
	for _, raw := range lines {
		line := stripBullet(strings.TrimSpace(raw))
		if line != "" {
			content = append(content, line)
		}
	}
	if len(content) == 0 {
		return sections
	}

	size := (len(content) + sectionCount - 1) / sectionCount
	for i := 0; i < sectionCount; i++ {
		start := i * size
		if start >= len(content) {
			break
		}
		end := start + size
		if end > len(content) {
			end = len(content)
		}
		sections[i] = content[start:end]
	}

	return sections
}

// eventLinePattern is the strict grammar for event lines:
// YYYY-MM-DD | description | positive/negative/neutral.
var eventLinePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s*\|([^|]+)\|\s*((?i:positive|negative|neutral))\s*$`)

// parseEvents extracts financial events from a free-text response.
// Non-matching lines are silently discarded. Results are sorted ascending by
// date and truncated to the first 10; descriptions are bounded at 200 runes.
func parseEvents(text string) []FinancialEvent {
	events := []FinancialEvent{}

	for _, raw := range strings.Split(text, "\n") {
		line := stripBullet(strings.TrimSpace(raw))

		m := eventLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		date, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			continue
		}

		desc := strings.TrimSpace(m[2])
		if desc == "" {
			continue
		}
		if runes := []rune(desc); len(runes) > maxEventDescRunes {
			desc = string(runes[:maxEventDescRunes])
		}

		events = append(events, FinancialEvent{
			Date:        date,
			Description: desc,
			Impact:      Impact(strings.ToLower(m[3])),
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})

	if len(events) > maxEvents {
		events = events[:maxEvents]
	}

	return events
}
