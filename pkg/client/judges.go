package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ZanzyTHEbar/judge-relay/internal/types"
)

// GFGSubmissions returns the GeeksforGeeks answer for handle verbatim
func (c *Client) GFGSubmissions(ctx context.Context, handle string) (json.RawMessage, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/gfg", map[string]string{"handle": handle})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// CodeforcesSubmissions returns the Codeforces user.status answer verbatim
func (c *Client) CodeforcesSubmissions(ctx context.Context, handle string) (json.RawMessage, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/codeforces/"+url.PathEscape(handle), nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// CountAcceptedProblems counts distinct problems with an "OK" verdict in a
// Codeforces user.status answer
func CountAcceptedProblems(raw json.RawMessage) (int, error) {
	var status struct {
		Result []struct {
			Verdict string `json:"verdict"`
			Problem struct {
				ContestID int    `json:"contestId"`
				Index     string `json:"index"`
				Name      string `json:"name"`
			} `json:"problem"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return 0, fmt.Errorf("failed to unmarshal codeforces submissions: %w", err)
	}

	seen := make(map[string]struct{})
	for _, sub := range status.Result {
		if sub.Verdict != "OK" {
			continue
		}
		key := fmt.Sprintf("%d/%s", sub.Problem.ContestID, sub.Problem.Index)
		if sub.Problem.ContestID == 0 && sub.Problem.Index == "" {
			key = sub.Problem.Name
		}
		seen[key] = struct{}{}
	}
	return len(seen), nil
}

// CountGFGSolved reads the solved count from a GeeksforGeeks submissions
// answer: its "count" field, or the number of problems listed per difficulty
func CountGFGSolved(raw json.RawMessage) (int, error) {
	var subs struct {
		Count  int                                   `json:"count"`
		Result map[string]map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &subs); err != nil {
		return 0, fmt.Errorf("failed to unmarshal gfg submissions: %w", err)
	}
	if subs.Count > 0 {
		return subs.Count, nil
	}

	total := 0
	for _, problems := range subs.Result {
		total += len(problems)
	}
	return total, nil
}

// AnalyzeResponse is the /api/analyze envelope
type AnalyzeResponse struct {
	Success  bool           `json:"success"`
	Analysis map[string]any `json:"analysis,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Analyze asks the relay for an AI analysis of stats. A relay-side failure
// is returned as *StatusError carrying the relay's error message.
func (c *Client) Analyze(ctx context.Context, stats types.Stats) (*AnalyzeResponse, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/analyze", types.AnalyzeRequest{Stats: &stats})
	if err != nil {
		return nil, err
	}

	var resp AnalyzeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &resp, nil
}
