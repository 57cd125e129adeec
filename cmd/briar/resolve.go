package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/briar/config"
	agentrepo "github.com/Ramsey-B/briar/internal/repositories/agentservice"
	decisionrepo "github.com/Ramsey-B/briar/internal/repositories/decisionlog"
	entityrepo "github.com/Ramsey-B/briar/internal/repositories/entity"
	reviewrepo "github.com/Ramsey-B/briar/internal/repositories/reviewqueue"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/fingerprint"
	"github.com/Ramsey-B/briar/pkg/llm"
	"github.com/Ramsey-B/briar/pkg/logging"
	"github.com/Ramsey-B/briar/pkg/matching"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/resolution"
)

func newResolveCmd() *cobra.Command {
	var sourceType string
	var sourceURL string

	cmd := &cobra.Command{
		Use:   "resolve <file>",
		Short: "Resolve records from an NDJSON file and print the results",
		Long: `Reads one JSON record per line and runs each through the resolution
pipeline against the configured database. Useful for debugging a scrape
batch before it is replayed onto the Kafka topic.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), args[0], sourceType, sourceURL)
		},
	}

	cmd.Flags().StringVar(&sourceType, "source", "", "source type of the records (sunbiz, property_deed, ...)")
	cmd.Flags().StringVar(&sourceURL, "url", "", "source URL recorded on each resolution")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

func runResolve(ctx context.Context, path, sourceType, sourceURL string) error {
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

	entities := entityrepo.NewRepository(db, logger)
	decisions := decisionrepo.NewRepository(db, logger)
	reviews := reviewrepo.NewRepository(db, logger)
	agentServices := agentrepo.NewRepository(db, logger)

	matcher := matching.NewMatcher(agentServices, matching.MatcherConfig{
		AutoAcceptThreshold: cfg.AutoAcceptThreshold,
	}, logger)
	finder := resolution.NewFinder(entities, resolution.FinderConfig{
		TrigramFloor: cfg.NameTrigramFloor,
		Limit:        cfg.CandidateLimit,
	}, logger)

	var arbitrator resolution.Arbitrator
	if cfg.LLMEnabled {
		client, err := llm.NewClient(ctx, llm.ClientConfig{
			Provider: cfg.LLMProvider,
			Model:    cfg.LLMModel,
			APIKey:   cfg.LLMAPIKey,
			BaseURL:  cfg.LLMBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to create llm client: %w", err)
		}
		arbitrator = llm.NewArbitrator(client, time.Duration(cfg.LLMTimeoutSeconds)*time.Second, logger)
	}

	resolver := resolution.NewResolver(entities, finder, matcher, arbitrator, decisions, reviews, resolution.Config{
		AutoAcceptThreshold: cfg.AutoAcceptThreshold,
		ReviewThreshold:     cfg.ReviewThreshold,
	}, logger)

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	out := json.NewEncoder(os.Stdout)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil {
			return fmt.Errorf("line %d: invalid record: %w", line, err)
		}

		result, err := resolver.Resolve(ctx, record, models.SourceContext{
			SourceType:  models.SourceType(sourceType),
			URL:         sourceURL,
			Fingerprint: fingerprint.Generate(record),
		})
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		if err := out.Encode(result); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	logger.Infof("Resolved %d records from %s", line, path)
	return nil
}
