package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ZanzyTHEbar/judge-relay/internal/types"
)

// Handles names a user on each platform. Empty handles are skipped.
type Handles struct {
	LeetCode    string
	GFG         string
	Codeforces  string
	RecentLimit int // recent LeetCode submissions to include, 15 when zero
}

// CollectStats queries every platform with a handle concurrently and
// assembles the aggregate statistics. Platforms that fail are left at zero
// and reported in the joined error; the stats gathered so far are still
// returned.
func (c *Client) CollectStats(ctx context.Context, h Handles) (types.Stats, error) {
	if h.RecentLimit <= 0 {
		h.RecentLimit = 15
	}

	var (
		stats types.Stats
		mu    sync.Mutex
		errs  []error
		wg    sync.WaitGroup
	)

	fail := func(platform string, err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, fmt.Errorf("%s: %w", platform, err))
	}

	if h.LeetCode != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			solved, langs, recent, err := c.leetCodeStats(ctx, h.LeetCode, h.RecentLimit)
			if err != nil {
				fail("leetcode", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			stats.LeetCode = solved
			stats.Languages = langs
			stats.RecentSubmissions = recent
		}()
	}

	if h.GFG != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := c.GFGSubmissions(ctx, h.GFG)
			if err == nil {
				var solved int
				if solved, err = CountGFGSolved(raw); err == nil {
					mu.Lock()
					stats.GFG = solved
					mu.Unlock()
					return
				}
			}
			fail("gfg", err)
		}()
	}

	if h.Codeforces != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := c.CodeforcesSubmissions(ctx, h.Codeforces)
			if err == nil {
				var solved int
				if solved, err = CountAcceptedProblems(raw); err == nil {
					mu.Lock()
					stats.Codeforces = solved
					mu.Unlock()
					return
				}
			}
			fail("codeforces", err)
		}()
	}

	wg.Wait()

	stats.TotalSolved = stats.LeetCode + stats.GFG + stats.Codeforces
	return stats, errors.Join(errs...)
}

func (c *Client) leetCodeStats(ctx context.Context, username string, limit int) (int, []types.LanguageUsage, []types.RecentSubmission, error) {
	solved, err := c.SolvedCount(ctx, username)
	if err != nil {
		return 0, nil, nil, err
	}

	counts, err := c.LanguageStats(ctx, username)
	if err != nil {
		return 0, nil, nil, err
	}
	langs := make([]types.LanguageUsage, 0, len(counts))
	for _, l := range counts {
		langs = append(langs, types.LanguageUsage{Name: l.LanguageName, ProblemsSolved: l.ProblemsSolved})
	}

	subs, err := c.RecentSubmissions(ctx, username, limit)
	if err != nil {
		return 0, nil, nil, err
	}
	recent := make([]types.RecentSubmission, 0, len(subs))
	for _, s := range subs {
		recent = append(recent, types.RecentSubmission{Title: s.Title, Lang: s.Lang, Timestamp: s.Timestamp})
	}

	return solved, langs, recent, nil
}
