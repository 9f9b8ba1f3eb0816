package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fc-troll-detector/internal/cache"

	"github.com/spf13/cobra"
)

var cachePurgeExpired bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the durable profile cache",
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <userId>",
	Short: "Print the cached snapshot of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		store, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		key := cfg.Cache.Prefix + args[0]
		e, found, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%s: not cached", key)
		}
		out := struct {
			Key       string    `json:"key"`
			FetchedAt time.Time `json:"fetched_at"`
			Fresh     bool      `json:"fresh"`
			Entry     any       `json:"entry"`
		}{key, time.UnixMilli(e.FetchedAtMs), e.Fresh(time.Now(), cfg.CacheTTL()), e}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cached profiles (all of them, or only expired ones with --expired)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		store, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var n int64
		switch s := store.(type) {
		case *cache.SQLiteStore:
			if cachePurgeExpired {
				n, err = s.Cleanup(ctx, time.Now())
			} else {
				n, err = s.Purge(ctx, cfg.Cache.Prefix)
			}
		case cache.Purger:
			if cachePurgeExpired {
				// redis expires keys on its own.
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to do: the backend expires entries itself")
				return nil
			}
			n, err = s.Purge(ctx, cfg.Cache.Prefix)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "cache backend %q keeps nothing\n", cfg.Cache.Backend)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)
		return nil
	},
}

func init() {
	cachePurgeCmd.Flags().BoolVar(&cachePurgeExpired, "expired", false, "only remove entries past their TTL")
	cacheCmd.AddCommand(cacheGetCmd, cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
