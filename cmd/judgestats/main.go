package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/judge-relay/pkg/client"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "judgestats",
		Usage: "query coding-judge statistics through a judge relay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "relay",
				Usage:   "relay base URL",
				Value:   client.DefaultBaseURL,
				EnvVars: []string{"RELAY_URL"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per-request timeout",
				Value: 60 * time.Second,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "recent",
				Usage:     "recent accepted LeetCode submissions",
				ArgsUsage: "<username>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "number of submissions", Value: 15},
				},
				Action: func(c *cli.Context) error {
					username, err := requireArg(c, "username")
					if err != nil {
						return err
					}
					subs, err := relayClient(c).RecentSubmissions(c.Context, username, c.Int("limit"))
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, subs)
				},
			},
			{
				Name:      "skills",
				Usage:     "LeetCode problems solved per topic tag",
				ArgsUsage: "<username>",
				Action: func(c *cli.Context) error {
					username, err := requireArg(c, "username")
					if err != nil {
						return err
					}
					counts, err := relayClient(c).SkillStats(c.Context, username)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, counts)
				},
			},
			{
				Name:      "solved",
				Usage:     "total LeetCode problems solved",
				ArgsUsage: "<username>",
				Action: func(c *cli.Context) error {
					username, err := requireArg(c, "username")
					if err != nil {
						return err
					}
					count, err := relayClient(c).SolvedCount(c.Context, username)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, count)
					return err
				},
			},
			{
				Name:      "languages",
				Usage:     "LeetCode problems solved per language",
				ArgsUsage: "<username>",
				Action: func(c *cli.Context) error {
					username, err := requireArg(c, "username")
					if err != nil {
						return err
					}
					langs, err := relayClient(c).LanguageStats(c.Context, username)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, langs)
				},
			},
			{
				Name:      "gfg",
				Usage:     "GeeksforGeeks submissions",
				ArgsUsage: "<handle>",
				Action: func(c *cli.Context) error {
					handle, err := requireArg(c, "handle")
					if err != nil {
						return err
					}
					raw, err := relayClient(c).GFGSubmissions(c.Context, handle)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, raw)
				},
			},
			{
				Name:      "codeforces",
				Usage:     "Codeforces submissions",
				ArgsUsage: "<handle>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "count", Usage: "print only the number of distinct accepted problems"},
				},
				Action: func(c *cli.Context) error {
					handle, err := requireArg(c, "handle")
					if err != nil {
						return err
					}
					raw, err := relayClient(c).CodeforcesSubmissions(c.Context, handle)
					if err != nil {
						return err
					}
					if !c.Bool("count") {
						return printJSON(c.App.Writer, raw)
					}
					count, err := client.CountAcceptedProblems(raw)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, count)
					return err
				},
			},
			{
				Name:  "analyze",
				Usage: "collect statistics for a user and ask the relay for an AI analysis",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "leetcode", Usage: "LeetCode username"},
					&cli.StringFlag{Name: "gfg", Usage: "GeeksforGeeks handle"},
					&cli.StringFlag{Name: "codeforces", Usage: "Codeforces handle"},
					&cli.IntFlag{Name: "limit", Usage: "recent LeetCode submissions to include", Value: 15},
				},
				Action: analyzeAction,
			},
		},
	}
}

func analyzeAction(c *cli.Context) error {
	handles := client.Handles{
		LeetCode:    c.String("leetcode"),
		GFG:         c.String("gfg"),
		Codeforces:  c.String("codeforces"),
		RecentLimit: c.Int("limit"),
	}
	if handles.LeetCode == "" && handles.GFG == "" && handles.Codeforces == "" {
		return cli.Exit("at least one of --leetcode, --gfg or --codeforces is required", 2)
	}

	rc := relayClient(c)

	stats, err := rc.CollectStats(c.Context, handles)
	if err != nil {
		// Partial statistics are still worth analyzing.
		slog.Warn("Some platforms could not be queried", "error", err)
	}
	if stats.TotalSolved == 0 && err != nil {
		return err
	}

	resp, err := rc.Analyze(c.Context, stats)
	if err != nil {
		return err
	}

	return printJSON(c.App.Writer, map[string]any{
		"stats":    stats,
		"analysis": resp.Analysis,
	})
}

func relayClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("relay"), client.WithTimeout(c.Duration("timeout")))
}

func requireArg(c *cli.Context, name string) (string, error) {
	if c.NArg() < 1 || c.Args().First() == "" {
		return "", cli.Exit(fmt.Sprintf("%s is required", name), 2)
	}
	return c.Args().First(), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
