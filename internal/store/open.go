package store

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"gwi.com/analyst-assistant/internal/config"
)

// Open builds the backend selected by STORE_BACKEND.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		return NewSQLiteStore(ctx, cfg.DatabaseURL)
	case config.BackendPostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case config.BackendCSV:
		return NewCSVStore(cfg.DataDir)
	case config.BackendSheets:
		var opts []option.ClientOption
		if cfg.SheetsCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.SheetsCredentialsFile))
		}
		return NewSheetsStore(ctx, cfg.SheetsSpreadsheetID, opts...)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
