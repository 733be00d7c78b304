package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deusflow/newsdigest/internal/clickstats"
)

var clickCmd = &cobra.Command{
	Use:   "click",
	Short: "Record a reader click in the redis click store",
	Long: `Record one reader click for a source and an article type. Only the redis
click stats backend accepts writes; the http tracker records clicks itself.

Examples:
  newsdigest click --source hn --type ai_tooling
  newsdigest click --source lobsters --type research --at 2026-03-01T09:00:00Z`,
	RunE: recordClick,
}

func init() {
	rootCmd.AddCommand(clickCmd)
	clickCmd.Flags().String("source", "", "source id")
	clickCmd.Flags().String("type", "", "article primary type")
	clickCmd.Flags().String("at", "", "click time, RFC 3339 (default now)")
}

func recordClick(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")
	primaryType, _ := cmd.Flags().GetString("type")
	atFlag, _ := cmd.Flags().GetString("at")

	if source == "" {
		return errors.New("--source is required")
	}
	at := time.Now()
	if atFlag != "" {
		var err error
		if at, err = time.Parse(time.RFC3339, atFlag); err != nil {
			return fmt.Errorf("--at: %w", err)
		}
	}

	if cfg.ClickStats.Backend != "redis" {
		return fmt.Errorf("click recording needs CLICKSTATS_BACKEND=redis, got %q", cfg.ClickStats.Backend)
	}
	r, err := clickstats.NewRedisReader(cfg.ClickStats.RedisURL)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.Record(cmd.Context(), source, primaryType, at); err != nil {
		return err
	}
	fmt.Printf("recorded click source=%q type=%q at %s\n", source, primaryType, at.UTC().Format(time.RFC3339))
	return nil
}
