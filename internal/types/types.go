package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Stats is the aggregate statistics record sent for analysis
type Stats struct {
	TotalSolved       int                `json:"totalSolved"`
	LeetCode          int                `json:"leetcode"`
	GFG               int                `json:"gfg"`
	Codeforces        int                `json:"codeforces"`
	Languages         []LanguageUsage    `json:"languages,omitempty"`
	RecentSubmissions []RecentSubmission `json:"recentSubmissions,omitempty"`
}

// maxCount bounds decoded counts to values a float64 holds exactly
const maxCount = 1 << 53

// UnmarshalJSON accepts any JSON number for the counts, such as 42.0 or
// 4.2e1 from a browser, and truncates it to an int.
func (s *Stats) UnmarshalJSON(data []byte) error {
	type plain Stats
	var raw struct {
		plain
		TotalSolved *float64 `json:"totalSolved"`
		LeetCode    *float64 `json:"leetcode"`
		GFG         *float64 `json:"gfg"`
		Codeforces  *float64 `json:"codeforces"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Stats(raw.plain)
	for _, f := range []struct {
		name string
		src  *float64
		dst  *int
	}{
		{"totalSolved", raw.TotalSolved, &s.TotalSolved},
		{"leetcode", raw.LeetCode, &s.LeetCode},
		{"gfg", raw.GFG, &s.GFG},
		{"codeforces", raw.Codeforces, &s.Codeforces},
	} {
		n, err := toCount(f.src)
		if err != nil {
			return fmt.Errorf("stats %s: %w", f.name, err)
		}
		*f.dst = n
	}
	return nil
}

func toCount(v *float64) (int, error) {
	if v == nil {
		return 0, nil
	}
	if math.Abs(*v) > maxCount {
		return 0, fmt.Errorf("%g is out of range", *v)
	}
	return int(*v), nil
}

// AnalyzeRequest is the body of POST /api/analyze
type AnalyzeRequest struct {
	Stats *Stats `json:"stats"`
}

// LanguageUsage is one entry of Stats.Languages. It accepts either a bare
// language name or an object such as LeetCode's languageProblemCount entry.
type LanguageUsage struct {
	Name           string `json:"languageName"`
	ProblemsSolved int    `json:"problemsSolved,omitempty"`
}

func (l *LanguageUsage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &l.Name)
	}

	var raw struct {
		LanguageName   string   `json:"languageName"`
		Name           string   `json:"name"`
		ProblemsSolved *float64 `json:"problemsSolved"`
		Count          *float64 `json:"count"`
		Solved         *float64 `json:"solved"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("language entry: %w", err)
	}

	l.Name = raw.LanguageName
	if l.Name == "" {
		l.Name = raw.Name
	}
	count := raw.ProblemsSolved
	if count == nil {
		count = raw.Count
	}
	if count == nil {
		count = raw.Solved
	}
	n, err := toCount(count)
	if err != nil {
		return fmt.Errorf("language entry count: %w", err)
	}
	l.ProblemsSolved = n
	return nil
}

// String renders the entry for prompts
func (l LanguageUsage) String() string {
	if l.ProblemsSolved > 0 {
		return fmt.Sprintf("%s (%d)", l.Name, l.ProblemsSolved)
	}
	return l.Name
}

// RecentSubmission is one entry of Stats.RecentSubmissions: a bare title or
// an object carrying title, lang and timestamp.
type RecentSubmission struct {
	Title     string `json:"title"`
	Lang      string `json:"lang,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (s *RecentSubmission) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.Title)
	}

	var raw struct {
		Title     string          `json:"title"`
		Lang      string          `json:"lang"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("recent submission entry: %w", err)
	}

	s.Title = raw.Title
	s.Lang = raw.Lang
	s.Timestamp = ""

	// LeetCode sends timestamps as strings, other sources as numbers
	ts := bytes.TrimSpace(raw.Timestamp)
	if len(ts) > 0 && !bytes.Equal(ts, []byte("null")) {
		if ts[0] == '"' {
			if err := json.Unmarshal(ts, &s.Timestamp); err != nil {
				return fmt.Errorf("recent submission timestamp: %w", err)
			}
		} else {
			s.Timestamp = string(ts)
		}
	}
	return nil
}

// LanguageNames returns the non-empty language names in order
func (s *Stats) LanguageNames() []string {
	names := make([]string, 0, len(s.Languages))
	for _, l := range s.Languages {
		if l.Name != "" {
			names = append(names, l.String())
		}
	}
	return names
}

// SubmissionTitles returns the non-empty submission titles in order
func (s *Stats) SubmissionTitles() []string {
	titles := make([]string, 0, len(s.RecentSubmissions))
	for _, r := range s.RecentSubmissions {
		if r.Title != "" {
			titles = append(titles, r.Title)
		}
	}
	return titles
}
