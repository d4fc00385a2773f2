package commands

import (
	"context"
	"cses-scraper/internal/render"
	"cses-scraper/internal/resultstore"
	"cses-scraper/lib/serviceutil"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	showFormat string
	showDb     string
)

func init() {
	showCmd.Flags().StringVar(&showFormat, "format", string(render.FORMAT_TABLE), "The output format, json or table.")
	showCmd.Flags().StringVar(&showDb, "db", "", "The sqlite database to read results from.")
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show [--db <path/to/results.db>] [username...]",
	Short: "Prints previously stored profile details.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		cfg = cfg.WithFlags(Flags{Db: showDb})
		if !cfg.Database.Enabled() {
			serviceutil.Fatal("no database", errors.New("pass --db or set database in the config"))
		}
		format, err := render.ParseFormat(showFormat)
		if err != nil {
			serviceutil.Fatal("invalid --format", err)
		}

		store, err := resultstore.Open(cmd.Context(), cfg.Database)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer store.Close()

		err = runShow(cmd.Context(), store, args, format, os.Stdout)
		if err != nil {
			serviceutil.Fatal("failed to show results", err)
		}
	},
}

// runShow writes the stored records of usernames, or every record when
// none are given.
func runShow(ctx context.Context, store resultstore.Store, usernames []string, format render.Format, out io.Writer) error {
	var records []resultstore.Record
	if len(usernames) == 0 {
		all, err := store.List(ctx)
		if err != nil {
			return err
		}
		records = all
	}
	for _, username := range usernames {
		record, ok, err := store.Get(ctx, username)
		if err != nil {
			return err
		}
		if !ok {
			slog.Warn("no stored details", "username", username)
			continue
		}
		records = append(records, record)
	}

	for _, r := range records {
		slog.Debug("stored record", "username", r.Username, "scraped_at", r.ScrapedAt)
	}
	return render.Result(out, format, resultstore.Result(records))
}
