package main

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/briar/config"
	entityrepo "github.com/Ramsey-B/briar/internal/repositories/entity"
	relationshiprepo "github.com/Ramsey-B/briar/internal/repositories/relationship"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/graph"
	"github.com/Ramsey-B/briar/pkg/logging"
	"github.com/Ramsey-B/briar/pkg/models"
)

const backfillPageSize = 500

func newGraphBackfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph-backfill",
		Short: "Rebuild the graph projection from Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGraphBackfill(cmd.Context())
		},
	}
}

func runGraphBackfill(ctx context.Context) error {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	logger := logging.New()

	db, err := database.Connect(ctx, database.Config{
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	graphClient, err := graph.NewClient(graph.Config{
		Host:     cfg.GraphDBHost,
		Port:     cfg.GraphDBPort,
		Username: cfg.GraphDBUser,
		Password: cfg.GraphDBPassword,
	}, logger)
	if err != nil {
		return err
	}
	defer graphClient.Close(ctx) //nolint:errcheck

	if err := graphClient.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("graph database unreachable: %w", err)
	}

	projector := graph.NewProjector(graphClient, logger)
	entities := entityrepo.NewRepository(db, logger)
	relationships := relationshiprepo.NewRepository(db, logger)

	if err := backfillEntities(ctx, entities, projector, logger); err != nil {
		return err
	}
	// Edges second so both endpoints already exist.
	return backfillRelationships(ctx, relationships, projector, logger)
}

func backfillEntities(ctx context.Context, repo *entityrepo.Repository, projector *graph.Projector, logger ectologger.Logger) error {
	total := 0
	for page := 1; ; page++ {
		batch, _, err := repo.List(ctx, page, backfillPageSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}

		pointers := make([]*models.Entity, len(batch))
		for i := range batch {
			pointers[i] = &batch[i]
		}
		if err := projector.ProjectEntities(ctx, pointers); err != nil {
			return err
		}

		total += len(batch)
		if len(batch) < backfillPageSize {
			break
		}
	}

	logger.Infof("Backfilled %d entities into graph", total)
	return nil
}

func backfillRelationships(ctx context.Context, repo *relationshiprepo.Repository, projector *graph.Projector, logger ectologger.Logger) error {
	total := 0
	for page := 1; ; page++ {
		batch, err := repo.List(ctx, page, backfillPageSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			if err := projector.ProjectRelationship(ctx, &batch[i]); err != nil {
				return err
			}
		}

		total += len(batch)
		if len(batch) < backfillPageSize {
			break
		}
	}

	logger.Infof("Backfilled %d relationships into graph", total)
	return nil
}
