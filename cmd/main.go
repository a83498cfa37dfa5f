package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/transitkit/gtfs"
	"github.com/transitkit/gtfs/downloader"
)

var rootCmd = &cobra.Command{
	Use:               "gtfs",
	Short:             "GTFS feed tool",
	Long:              "Validates and queries GTFS feeds",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	headers                []string
	caseInsensitiveHeaders bool
	logLevel               string
	format                 string
	dateStr                string

	logger *zap.Logger
)

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(
		&headers,
		"header",
		"",
		[]string{},
		"HTTP header used when fetching a feed, on form <key>:<value>",
	)
	rootCmd.PersistentFlags().BoolVarP(&caseInsensitiveHeaders, "case-insensitive-headers", "", false, "Match CSV column names regardless of case")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "text", "Output format (text, csv)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(timetableCmd)
	rootCmd.AddCommand(tripCmd)
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(departuresCmd)
	rootCmd.AddCommand(stopsCmd)
}

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	if v := os.Getenv("GTFS_LOG_LEVEL"); v != "" && !cmd.Flags().Changed("log-level") {
		logLevel = v
	}

	var err error
	logger, err = newLogger(logLevel, false)
	if err != nil {
		return err
	}

	if format != "text" && format != "csv" {
		return fmt.Errorf("unknown format '%s'", format)
	}

	return nil
}

func newLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl

	return cfg.Build()
}

func parseHeaders(headers []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("'%s' is not on form <key>:<value>", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

func isRemote(source string) bool {
	for _, prefix := range []string{"http://", "https://", "gs://"} {
		if strings.HasPrefix(source, prefix) {
			return true
		}
	}
	return false
}

func feedOptions() gtfs.Options {
	return gtfs.Options{
		Logger:                 logger,
		CaseInsensitiveHeaders: caseInsensitiveHeaders,
		Progress: func(name string, done, total int) {
			logger.Debug("read file", zap.String("file", name), zap.Int("done", done), zap.Int("total", total))
		},
	}
}

// loadFeed builds the feed at source: a zip file or directory on
// disk, or an http(s):// or gs:// URL.
func loadFeed(ctx context.Context, source string) (*gtfs.Feed, error) {
	if !isRemote(source) {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("opening feed: %w", err)
		}
		if info.IsDir() {
			return gtfs.LoadFile(ctx, source, feedOptions())
		}
	}

	h, err := parseHeaders(headers)
	if err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	buf, err := downloader.Fetch(ctx, source, h, downloader.GetOptions{
		Timeout: gtfs.DefaultTimeout,
		MaxSize: gtfs.DefaultMaxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}

	return gtfs.LoadZip(ctx, buf, feedOptions())
}

// serviceDate is --date in the feed's timezone, or today.
func serviceDate(feed *gtfs.Feed) (time.Time, error) {
	loc := feed.Location()
	if dateStr == "" {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
	}
	date, err := time.ParseInLocation("20060102", dateStr, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date '%s', expected YYYYMMDD", dateStr)
	}
	return date, nil
}

func addDateFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&dateStr, "date", "D", "", "Service date as YYYYMMDD (default today)")
}
