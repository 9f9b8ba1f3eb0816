package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fc-troll-detector/internal/feed"
	"fc-troll-detector/internal/model"
	"fc-troll-detector/internal/report"
	"fc-troll-detector/internal/session"

	"github.com/spf13/cobra"
)

var (
	analyzeMode    string
	analyzeOut     string
	analyzeFeed    string
	analyzeReport  string
	analyzeTitle   string
	analyzeBaseURL string
	analyzeForce   bool
)

// analyzeCmd scores the users of one thread or listing page and writes the
// annotated document.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <url|file>",
	Short: "Analyze a thread or listing page and annotate it with badges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		mode, err := session.ParseMode(analyzeMode)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		client := newForumClient(cfg)
		p, err := session.LoadPage(ctx, client, args[0], analyzeBaseURL)
		if err != nil {
			return fmt.Errorf("load %s: %w", args[0], err)
		}
		sess := session.New(p, mode, session.Deps{
			Config:    cfg,
			Client:    client,
			Store:     store,
			Persister: persister(),
		})

		start := time.Now()
		results, err := sess.Analyze(ctx, analyzeForce)
		switch {
		case errors.Is(err, session.ErrAutoAnalyzeOff):
			fmt.Fprintln(cmd.ErrOrStderr(), "auto_analyze is off; pass --force to analyze anyway")
		case err != nil:
			return err
		default:
			slog.Info("analyze: done", "mode", sess.Mode, "scored", len(results), "duration", time.Since(start))
		}
		printResults(cmd.OutOrStdout(), results)

		if analyzeOut != "" {
			html, err := sess.HTML()
			if err != nil {
				return err
			}
			if err := writeOutput(analyzeOut, html); err != nil {
				return err
			}
		}
		if analyzeReport != "" {
			d := report.Build(analyzeTitle, sess.URL(), string(sess.Mode), results, time.Now())
			md, err := report.Render(d)
			if err != nil {
				return err
			}
			if err := writeOutput(analyzeReport, md); err != nil {
				return err
			}
		}
		if analyzeFeed != "" {
			if sess.Mode != session.ModeListing {
				slog.Warn("analyze: --feed only applies to listing pages", "mode", sess.Mode)
			} else {
				atom, err := feed.Atom(report.ExpandVars(analyzeTitle, time.Now()), sess.URL(), results, time.Now())
				if err != nil {
					return err
				}
				if err := writeOutput(analyzeFeed, atom); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func printResults(w io.Writer, results []model.Assessment) {
	for _, a := range results {
		state := fmt.Sprintf("%3d%% %-6s", a.Score.Probability, a.Score.Tier)
		if a.Trusted {
			state = "trusted    "
		}
		op := ""
		if a.IsOP {
			op = " (OP)"
		}
		fmt.Fprintf(w, "%s  %s%s  %d days, %.2f msgs/day", state, a.Username, op, a.Snapshot.DaysRegistered, a.Snapshot.MessagesPerDay)
		if a.ThreadTitle != "" {
			fmt.Fprintf(w, "  %q", a.ThreadTitle)
		}
		fmt.Fprintln(w)
	}
}

// writeOutput writes content to path, or to stdout for "-".
func writeOutput(path, content string) error {
	if path == "-" {
		_, err := io.WriteString(os.Stdout, content)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return err
	}
	slog.Info("analyze: wrote output", "path", path)
	return nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeMode, "mode", "auto", "page mode: auto, thread or listing")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "write the annotated HTML to this file (- for stdout)")
	analyzeCmd.Flags().StringVar(&analyzeReport, "report", "", "write a Markdown report to this file (- for stdout)")
	analyzeCmd.Flags().StringVar(&analyzeFeed, "feed", "", "write an Atom feed of scored threads (listing pages only)")
	analyzeCmd.Flags().StringVar(&analyzeTitle, "title", "Troll report {.CurrentDate}", "report and feed title; {.CurrentDate} expands to today")
	analyzeCmd.Flags().StringVar(&analyzeBaseURL, "base-url", "", "base URL for relative links when analyzing a local file")
	analyzeCmd.Flags().BoolVar(&analyzeForce, "force", false, "analyze even when auto_analyze is off")
	rootCmd.AddCommand(analyzeCmd)
}
