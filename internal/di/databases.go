package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/portfolio-qubo/internal/config"
	"github.com/aristath/portfolio-qubo/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the three databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	specs := []struct {
		name    string
		profile database.DatabaseProfile
		target  **database.DB
	}{
		{"runs", database.ProfileStandard, &container.RunsDB},       // Solver runs and score tables
		{"history", database.ProfileStandard, &container.HistoryDB}, // Daily closes
		{"cache", database.ProfileCache, &container.CacheDB},        // Ephemeral estimate cache
	}

	for _, spec := range specs {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, spec.name+".db"),
			Profile: spec.profile,
			Name:    spec.name,
		})
		if err != nil {
			_ = container.Close()
			return nil, fmt.Errorf("failed to initialize %s database: %w", spec.name, err)
		}
		*spec.target = db

		if err := db.Migrate(); err != nil {
			_ = container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", spec.name, err)
		}
	}

	log.Info().Int("databases", len(specs)).Msg("All databases initialized and schemas applied")

	return container, nil
}
