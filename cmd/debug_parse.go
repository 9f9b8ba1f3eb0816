package cmd

import (
	"fmt"
	"os"
	"time"

	"fc-troll-detector/internal/forum"
	"fc-troll-detector/internal/score"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"
)

var debugParseCmd = &cobra.Command{
	Use:   "debug-parse <profile_html_path>",
	Short: "Debug: parse a saved profile page and print the extracted fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		doc, err := goquery.NewDocumentFromReader(f)
		if err != nil {
			return err
		}
		snap, err := forum.ParseProfile("local", doc.Find("body").Text(), time.Now())
		if err != nil {
			return err
		}
		res := score.New(GetConfig().ScoreParams()).Score(snap)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "registered: %s (%d days)\n", snap.RegistrationDateRaw, snap.DaysRegistered)
		fmt.Fprintf(out, "threads: %d\n", snap.ThreadCount)
		fmt.Fprintf(out, "messages: %d (%.2f/day)\n", snap.MessageCount, snap.MessagesPerDay)
		fmt.Fprintf(out, "probability: %d%% (%s)\n", res.Probability, res.Tier)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugParseCmd)
}
