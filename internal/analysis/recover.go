package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ZanzyTHEbar/judge-relay/internal/types"
)

// Analysis is the assessment object. It stays generic so extra keys from
// the model pass through untouched.
type Analysis map[string]any

// RequiredKeys must all be present for a reply to be accepted
var RequiredKeys = []string{"summary", "strengths", "improvements", "suggestions"}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ExtractJSON returns the interior of the first fenced block, or the whole
// reply when there is none. The result is trimmed.
func ExtractJSON(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// Recover turns a raw model reply into an Analysis. It never fails: replies
// that do not decode to an object carrying every required key are replaced by
// Fallback(stats). usedFallback reports which path was taken.
func Recover(raw string, stats types.Stats) (result Analysis, usedFallback bool) {
	defer func() {
		if r := recover(); r != nil {
			result, usedFallback = Fallback(stats), true
		}
	}()

	var decoded any
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &decoded); err != nil {
		return Fallback(stats), true
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return Fallback(stats), true
	}

	for _, key := range RequiredKeys {
		if _, present := obj[key]; !present {
			return Fallback(stats), true
		}
	}

	return Analysis(obj), false
}

// EnsureRoadmap injects DefaultRoadmap when the analysis has none. It
// reports whether it did.
func EnsureRoadmap(a Analysis) bool {
	if _, ok := a["roadmap"]; ok {
		return false
	}
	a["roadmap"] = DefaultRoadmap()
	return true
}

// Fallback is the canned analysis used when the model reply is unusable
func Fallback(stats types.Stats) Analysis {
	return Analysis{
		"summary": fmt.Sprintf(
			"You have solved %d problems so far, placing you in the %s tier. Keep a steady practice rhythm and push into harder topics to keep improving.",
			stats.TotalSolved, TierFor(stats.TotalSolved)),
		"strengths": []any{
			"Consistent problem-solving practice",
			"Experience across multiple platforms",
		},
		"improvements": []any{
			"Tackle more medium and hard problems",
			"Cover weaker topics such as dynamic programming and graphs",
		},
		"suggestions": []any{
			"Solve at least one problem every day",
			"Participate in weekly contests",
			"Review editorial solutions after each attempt",
		},
	}
}

// DefaultRoadmap is the four-week plan used when the model omits one
func DefaultRoadmap() map[string]any {
	week := func(focus, problems, goal string) map[string]any {
		return map[string]any{"focus": focus, "problems": problems, "goal": goal}
	}
	return map[string]any{
		"week1":          week("Arrays and Strings", "Solve 10 easy and 5 medium problems", "Build speed on fundamentals"),
		"week2":          week("Linked Lists and Stacks", "Solve 8 medium problems", "Master pointer manipulation"),
		"week3":          week("Trees and Graphs", "Solve 6 medium and 2 hard problems", "Get comfortable with traversals"),
		"week4":          week("Dynamic Programming", "Solve 5 medium and 3 hard problems", "Recognize common DP patterns"),
		"monthly_target": "Solve 40+ problems and enter at least 2 contests",
	}
}
