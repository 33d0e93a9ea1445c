package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	recentAcSubmissionsQuery = `query recentAcSubmissions($username: String!, $limit: Int!) {
  recentAcSubmissionList(username: $username, limit: $limit) {
    id
    title
    titleSlug
    timestamp
    lang
  }
}`

	skillStatsQuery = `query skillStats($username: String!) {
  matchedUser(username: $username) {
    tagProblemCounts {
      advanced { tagName tagSlug problemsSolved }
      intermediate { tagName tagSlug problemsSolved }
      fundamental { tagName tagSlug problemsSolved }
    }
  }
}`

	userProblemsSolvedQuery = `query userProblemsSolved($username: String!) {
  matchedUser(username: $username) {
    submitStatsGlobal {
      acSubmissionNum { difficulty count }
    }
  }
}`

	languageStatsQuery = `query languageStats($username: String!) {
  matchedUser(username: $username) {
    languageProblemCount { languageName problemsSolved }
  }
}`
)

// Submission is one recent accepted LeetCode submission
type Submission struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	TitleSlug string `json:"titleSlug"`
	Timestamp string `json:"timestamp"`
	Lang      string `json:"lang"`
}

// TagCount is the number of problems solved for one topic tag
type TagCount struct {
	TagName        string `json:"tagName"`
	TagSlug        string `json:"tagSlug"`
	ProblemsSolved int    `json:"problemsSolved"`
}

// TagProblemCounts groups tag counts by LeetCode skill level
type TagProblemCounts struct {
	Advanced     []TagCount `json:"advanced"`
	Intermediate []TagCount `json:"intermediate"`
	Fundamental  []TagCount `json:"fundamental"`
}

// LanguageCount is the number of problems solved in one language
type LanguageCount struct {
	LanguageName   string `json:"languageName"`
	ProblemsSolved int    `json:"problemsSolved"`
}

type graphQLRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

// graphQL posts one operation through the relay and decodes its data into out
func (c *Client) graphQL(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/leetcode", graphQLRequest{
		OperationName: operation,
		Variables:     variables,
		Query:         query,
	})
	if err != nil {
		return err
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(envelope.Errors) > 0 {
		return &GraphQLError{Message: envelope.Errors[0].Message}
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return fmt.Errorf("%s: response has no data", operation)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s data: %w", operation, err)
	}
	return nil
}

// RecentSubmissions returns up to limit recent accepted submissions
func (c *Client) RecentSubmissions(ctx context.Context, username string, limit int) ([]Submission, error) {
	var data struct {
		RecentAcSubmissionList []Submission `json:"recentAcSubmissionList"`
	}
	err := c.graphQL(ctx, "recentAcSubmissions", recentAcSubmissionsQuery, map[string]any{
		"username": username,
		"limit":    limit,
	}, &data)
	if err != nil {
		return nil, err
	}
	return data.RecentAcSubmissionList, nil
}

// SkillStats returns the tag-based problem counts
func (c *Client) SkillStats(ctx context.Context, username string) (*TagProblemCounts, error) {
	var data struct {
		MatchedUser *struct {
			TagProblemCounts TagProblemCounts `json:"tagProblemCounts"`
		} `json:"matchedUser"`
	}
	if err := c.graphQL(ctx, "skillStats", skillStatsQuery, map[string]any{"username": username}, &data); err != nil {
		return nil, err
	}
	if data.MatchedUser == nil {
		return nil, ErrUserNotFound
	}
	return &data.MatchedUser.TagProblemCounts, nil
}

// SolvedCount returns the total accepted count, the "All" difficulty
// bucket, or 0 when the bucket is missing
func (c *Client) SolvedCount(ctx context.Context, username string) (int, error) {
	var data struct {
		MatchedUser *struct {
			SubmitStatsGlobal struct {
				AcSubmissionNum []struct {
					Difficulty string `json:"difficulty"`
					Count      int    `json:"count"`
				} `json:"acSubmissionNum"`
			} `json:"submitStatsGlobal"`
		} `json:"matchedUser"`
	}
	if err := c.graphQL(ctx, "userProblemsSolved", userProblemsSolvedQuery, map[string]any{"username": username}, &data); err != nil {
		return 0, err
	}
	if data.MatchedUser == nil {
		return 0, ErrUserNotFound
	}

	for _, bucket := range data.MatchedUser.SubmitStatsGlobal.AcSubmissionNum {
		if bucket.Difficulty == "All" {
			return bucket.Count, nil
		}
	}
	return 0, nil
}

// LanguageStats returns problems solved per language
func (c *Client) LanguageStats(ctx context.Context, username string) ([]LanguageCount, error) {
	var data struct {
		MatchedUser *struct {
			LanguageProblemCount []LanguageCount `json:"languageProblemCount"`
		} `json:"matchedUser"`
	}
	if err := c.graphQL(ctx, "languageStats", languageStatsQuery, map[string]any{"username": username}, &data); err != nil {
		return nil, err
	}
	if data.MatchedUser == nil {
		return nil, ErrUserNotFound
	}
	return data.MatchedUser.LanguageProblemCount, nil
}
