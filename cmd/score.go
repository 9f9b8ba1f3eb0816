package cmd

import (
	"context"
	"encoding/json"
	"time"

	"fc-troll-detector/internal/cache"
	"fc-troll-detector/internal/forum"
	"fc-troll-detector/internal/model"
	"fc-troll-detector/internal/score"

	"github.com/spf13/cobra"
)

// scoreCmd fetches one profile and prints its snapshot and score.
var scoreCmd = &cobra.Command{
	Use:   "score <profile-url>",
	Short: "Fetch a member profile and print its snapshot and risk score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		store, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ForumTimeout()+5*time.Second)
		defer cancel()

		c := cache.New(store, cache.WithPrefix(cfg.Cache.Prefix), cache.WithTTL(cfg.CacheTTL()))
		snap, err := forum.NewFetcher(newForumClient(cfg), c).Fetch(ctx, args[0])
		if err != nil {
			return err
		}
		out := struct {
			Snapshot model.Snapshot    `json:"snapshot"`
			Score    model.ScoreResult `json:"score"`
		}{snap, score.New(cfg.ScoreParams()).Score(snap)}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
