// Command backtest fetches a candle range from Coinone and replays the
// trading engine over it, printing a report and optionally writing the
// trade list as CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"coinone-trading-bot/config"
	"coinone-trading-bot/internal/backtest"
	"coinone-trading-bot/internal/coinone"
	"coinone-trading-bot/internal/database"
	"coinone-trading-bot/internal/logging"
)

func main() {
	godotenv.Load()

	var (
		configPath = flag.String("config", "config.json", "path to config file")
		target     = flag.String("target", "", "target currency (default from config)")
		interval   = flag.String("interval", "", "candle interval (default from config)")
		days       = flag.Int("days", 7, "number of days of history to replay")
		capital    = flag.Float64("capital", 0, "initial capital (default from config)")
		csvPath    = flag.String("csv", "", "write per-trade CSV to this path")
		save       = flag.Bool("save", false, "persist the run to the database")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *target != "" {
		cfg.Market.TargetCurrency = *target
	}
	if *interval != "" {
		cfg.Market.PrimaryInterval = *interval
	}
	if *capital > 0 {
		cfg.Backtest.InitialCapital = *capital
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Output, cfg.Logging.JSONFormat)

	iv := coinone.Interval(cfg.Market.PrimaryInterval)
	if _, err := iv.Duration(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	end := time.Now()
	start := end.AddDate(0, 0, -*days)

	client := coinone.NewClient(cfg.Coinone.BaseURL, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Printf("Fetching %s/%s %s candles, %s to %s...\n",
		cfg.Market.TargetCurrency, cfg.Market.QuoteCurrency, iv,
		start.Format("2006-01-02"), end.Format("2006-01-02"))

	candles, err := client.GetChart(ctx,
		cfg.Market.QuoteCurrency, cfg.Market.TargetCurrency, iv,
		start.UnixMilli(), end.UnixMilli())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to fetch candles: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Fetched %d candles\n", len(candles))

	engine, err := backtest.NewEngine(cfg.Backtest, cfg.Classifier, cfg.BandWalk, cfg.Strategy, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build engine: %v\n", err)
		os.Exit(1)
	}

	result, err := engine.Run(ctx, candles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtest failed: %v\n", err)
		os.Exit(1)
	}

	backtest.WriteReport(os.Stdout, result)

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create CSV file: %v\n", err)
			os.Exit(1)
		}
		if err := backtest.WriteCSV(f, result); err != nil {
			f.Close()
			fmt.Fprintf(os.Stderr, "failed to write CSV: %v\n", err)
			os.Exit(1)
		}
		f.Close()
		fmt.Printf("Trades written to %s\n", *csvPath)
	}

	if *save {
		if !cfg.Database.Enabled {
			fmt.Fprintln(os.Stderr, "database is not enabled in configuration")
			os.Exit(1)
		}
		db, err := database.NewDB(cfg.Database, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.RunMigrations(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migrations failed: %v\n", err)
			os.Exit(1)
		}

		runID, err := database.NewRepository(db).SaveRun(ctx,
			cfg.Market.QuoteCurrency, cfg.Market.TargetCurrency, iv, start, end, result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to save run: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Saved as run %d\n", runID)
	}
}
