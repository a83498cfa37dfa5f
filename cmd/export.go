package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/transitkit/gtfs"
	"github.com/transitkit/gtfs/storage"
)

var exportCmd = &cobra.Command{
	Use:   "export <feed>",
	Short: "Loads a feed archive and writes it to a database",
	Args:  cobra.ExactArgs(1),
	RunE:  export,
}

var (
	backend         string
	sqliteDirectory string
	postgresConnStr string
	clearDB         bool
)

func init() {
	exportCmd.Flags().StringVarP(&backend, "backend", "b", "sqlite", "Storage backend (sqlite, postgres)")
	exportCmd.Flags().StringVarP(&sqliteDirectory, "dir", "", ".", "Directory for sqlite databases")
	exportCmd.Flags().StringVarP(&postgresConnStr, "conn", "", "", "Postgres connection string (default $GTFS_POSTGRES_CONN)")
	exportCmd.Flags().BoolVarP(&clearDB, "clear", "", false, "Drop all existing postgres tables first")
}

func openStorage(backend, sqliteDir, connStr string, clear bool) (storage.Storage, error) {
	switch backend {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		return storage.NewSQLiteStorage(storage.SQLiteConfig{
			OnDisk:    sqliteDir != "",
			Directory: sqliteDir,
		})
	case "postgres":
		if connStr == "" {
			connStr = os.Getenv("GTFS_POSTGRES_CONN")
		}
		if connStr == "" {
			return nil, fmt.Errorf("postgres requires a connection string")
		}
		return storage.NewPSQLStorage(connStr, clear)
	}
	return nil, fmt.Errorf("unknown backend '%s'", backend)
}

func export(cmd *cobra.Command, args []string) error {
	source := args[0]
	if info, err := os.Stat(source); err == nil && info.IsDir() {
		return fmt.Errorf("export requires a zip archive, %s is a directory", source)
	}
	if backend != "sqlite" && backend != "postgres" {
		return fmt.Errorf("unknown backend '%s'", backend)
	}

	s, err := openStorage(backend, sqliteDirectory, postgresConnStr, clearDB)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}

	h, err := parseHeaders(headers)
	if err != nil {
		return fmt.Errorf("invalid header: %w", err)
	}

	manager := gtfs.NewManager(s)
	manager.Options = feedOptions()

	metadata, err := manager.Refresh(cmd.Context(), source, h)
	if err != nil {
		return describeLoadError(err)
	}

	logger.Info(
		"exported feed",
		zap.String("backend", backend),
		zap.String("hash", metadata.Hash),
	)
	fmt.Printf("%s %s %s-%s\n", metadata.Hash, metadata.Timezone, metadata.CalendarStartDate, metadata.CalendarEndDate)

	return nil
}
