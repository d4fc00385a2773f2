package commands

import (
	"context"
	"cses-scraper/internal/components/chrono"
	"cses-scraper/internal/components/telemetry"
	"cses-scraper/internal/credentials"
	"cses-scraper/internal/render"
	"cses-scraper/internal/resultstore"
	"cses-scraper/internal/scrapers/cses"
	"cses-scraper/lib/restyutil"
	"cses-scraper/lib/serviceutil"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	scrapeFormat string
	scrapeFlags  Flags
)

func init() {
	scrapeCmd.Flags().StringVar(&scrapeFormat, "format", string(render.FORMAT_JSON), "The output format, json or table.")
	scrapeCmd.Flags().StringVar(&scrapeFlags.Db, "db", "", "A sqlite database to also write the results to.")
	scrapeCmd.Flags().StringVar(&scrapeFlags.Extraction, "extraction", "", "How profile rows are matched to fields, position or label.")
	scrapeCmd.Flags().StringVar(&scrapeFlags.DumpHttp, "dump-http", "", "A directory to dump http messages to when --verbose is set.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--format json|table] [--db <path/to/results.db>]",
	Short: "Reads usernames then passwords from stdin, logs into each account and prints the profile details.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		cfg = cfg.WithFlags(scrapeFlags)

		format, err := render.ParseFormat(scrapeFormat)
		if err != nil {
			serviceutil.Fatal("invalid --format", err)
		}
		creds, err := credentials.Read(credentials.Stdin())
		if err != nil {
			serviceutil.Fatal("failed to read credentials", err)
		}

		err = runScrape(cmd.Context(), scrapeRun{
			config: cfg,
			creds:  creds,
			format: format,
			out:    os.Stdout,
			time:   chrono.StandardImpl{},
			tel:    telemetry.SlogAPI{},
		})
		if err != nil {
			serviceutil.Fatal("failed to scrape", err)
		}
	},
}

type scrapeRun struct {
	config Config
	creds  []cses.Credential
	format render.Format
	out    io.Writer
	time   chrono.API
	tel    telemetry.API
}

// runScrape scrapes every credential and writes the result. An interrupted
// run still writes and stores what was collected before it.
func runScrape(ctx context.Context, run scrapeRun) error {
	opts, err := run.config.ScraperOptions()
	if err != nil {
		return err
	}
	if run.config.DumpHttp != "" {
		output, err := restyutil.NewFilesystemOutput(run.config.DumpHttp)
		if err != nil {
			return fmt.Errorf("create http dump directory: %w", err)
		}
		opts.DumpOutput = output
	}

	var store resultstore.Store
	if run.config.Database.Enabled() {
		store, err = resultstore.Open(ctx, run.config.Database)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	scraper, err := cses.NewScraper(opts, run.time, run.tel)
	if err != nil {
		return err
	}

	start := run.time.Now()
	result, err := scraper.Scrape(ctx, run.creds)
	if err != nil {
		slog.Warn("scrape stopped early", "err", err, "scraped", len(result))
	}
	slog.Info(
		"scraping done",
		"scraped", len(result),
		"total", len(run.creds),
		"seconds", run.time.Now().Sub(start).Seconds(),
	)

	if run.config.Database.Enabled() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		err := store.Put(ctx, run.time.Now(), result)
		if err != nil {
			return fmt.Errorf("store results: %w", err)
		}
	}

	return render.Result(run.out, run.format, result)
}
