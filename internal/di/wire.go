package di

import (
	"fmt"

	"github.com/aristath/portfolio-qubo/internal/config"
	"github.com/rs/zerolog"
)

// Wire opens the databases and builds every repository, service and job on
// top of them. On failure everything opened so far is closed.
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	var jobs *JobInstances
	steps := []struct {
		name string
		run  func() error
	}{
		{"initialize repositories", func() error { return InitializeRepositories(container, log) }},
		{"initialize services", func() error { return InitializeServices(container, cfg, log) }},
		{"register jobs", func() (err error) {
			jobs, err = RegisterJobs(container, cfg, log)
			return err
		}},
	}

	for _, step := range steps {
		if err := step.run(); err != nil {
			if cerr := container.Close(); cerr != nil {
				log.Warn().Err(cerr).Msg("Failed to close databases after wiring error")
			}
			return nil, nil, fmt.Errorf("failed to %s: %w", step.name, err)
		}
	}

	log.Info().
		Int("databases", len(container.Databases())).
		Int("jobs", len(jobs.All())).
		Bool("archive", container.ObjectStore != nil).
		Msg("Dependency wiring completed")

	return container, jobs, nil
}
