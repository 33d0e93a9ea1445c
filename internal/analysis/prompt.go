package analysis

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/judge-relay/internal/types"
)

// Tier is a coarse skill bracket by total problems solved
type Tier string

const (
	TierBeginner     Tier = "Beginner"
	TierIntermediate Tier = "Intermediate"
	TierAdvanced     Tier = "Advanced"
	TierExpert       Tier = "Expert"
)

// TierFor returns the bracket for a total solved count
func TierFor(totalSolved int) Tier {
	switch {
	case totalSolved < 50:
		return TierBeginner
	case totalSolved < 150:
		return TierIntermediate
	case totalSolved < 400:
		return TierAdvanced
	default:
		return TierExpert
	}
}

// SystemPrompt is installed on the assistant, or sent as the system message
const SystemPrompt = `You are a blunt competitive-programming coach. You review a student's
problem-solving statistics and return an honest assessment calibrated to their tier.

Tiers by total problems solved:
- Beginner: fewer than 50
- Intermediate: 50 to 149
- Advanced: 150 to 399
- Expert: 400 or more

Judge the student against peers in the same tier, not against experts. Be specific and
concrete; do not pad the answer with generic encouragement.

Respond with a single JSON object and nothing else, using exactly this schema:
{
  "summary": "two or three sentences on overall standing",
  "strengths": ["strength", "..."],
  "improvements": ["weakness to work on", "..."],
  "suggestions": ["actionable next step", "..."],
  "roadmap": {
    "week1": {"focus": "topic", "problems": "what and how many to solve", "goal": "measurable outcome"},
    "week2": {"focus": "...", "problems": "...", "goal": "..."},
    "week3": {"focus": "...", "problems": "...", "goal": "..."},
    "week4": {"focus": "...", "problems": "...", "goal": "..."},
    "monthly_target": "one sentence target for the month"
  }
}`

// BuildPrompt renders the statistics into the analysis request. Platform
// lines are only present for platforms with solved problems.
func BuildPrompt(stats types.Stats) string {
	var b strings.Builder

	tier := TierFor(stats.TotalSolved)
	fmt.Fprintf(&b, "Analyze this competitive programmer. Be brutally honest and judge them as a %s-tier coder.\n\n", tier)
	fmt.Fprintf(&b, "Total problems solved: %d (tier: %s)\n", stats.TotalSolved, tier)

	platforms := []struct {
		name  string
		count int
	}{
		{"LeetCode", stats.LeetCode},
		{"GeeksforGeeks", stats.GFG},
		{"Codeforces", stats.Codeforces},
	}
	var lines []string
	for _, p := range platforms {
		if p.count > 0 {
			lines = append(lines, fmt.Sprintf("- %s: %d problems", p.name, p.count))
		}
	}
	if len(lines) > 0 {
		b.WriteString("\nPlatform breakdown:\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}

	if langs := stats.LanguageNames(); len(langs) > 0 {
		fmt.Fprintf(&b, "\nLanguages used: %s\n", strings.Join(langs, ", "))
	}

	if titles := stats.SubmissionTitles(); len(titles) > 0 {
		fmt.Fprintf(&b, "\nRecent accepted problems: %s\n", strings.Join(titles, ", "))
	}

	b.WriteString("\nReturn only the JSON object described in your instructions, including the four-week roadmap.")
	return b.String()
}
