package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectologger"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/briar/config"
	agentrepo "github.com/Ramsey-B/briar/internal/repositories/agentservice"
	decisionrepo "github.com/Ramsey-B/briar/internal/repositories/decisionlog"
	entityrepo "github.com/Ramsey-B/briar/internal/repositories/entity"
	relationshiprepo "github.com/Ramsey-B/briar/internal/repositories/relationship"
	reviewrepo "github.com/Ramsey-B/briar/internal/repositories/reviewqueue"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/events"
	"github.com/Ramsey-B/briar/pkg/graph"
	"github.com/Ramsey-B/briar/pkg/kafka"
	"github.com/Ramsey-B/briar/pkg/llm"
	"github.com/Ramsey-B/briar/pkg/logging"
	"github.com/Ramsey-B/briar/pkg/matching"
	"github.com/Ramsey-B/briar/pkg/middleware"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/processor"
	"github.com/Ramsey-B/briar/pkg/resolution"
	agentserviceroutes "github.com/Ramsey-B/briar/pkg/routes/agentservice"
	entityroutes "github.com/Ramsey-B/briar/pkg/routes/entity"
	graphroutes "github.com/Ramsey-B/briar/pkg/routes/graph"
	"github.com/Ramsey-B/briar/pkg/routes/health"
	resolveroutes "github.com/Ramsey-B/briar/pkg/routes/resolve"
	reviewroutes "github.com/Ramsey-B/briar/pkg/routes/reviewqueue"
	"github.com/Ramsey-B/briar/pkg/tracing"
	"github.com/Ramsey-B/briar/pkg/validation"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the Kafka ingestion consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	logger := logging.New()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.InitConfig{
		ServiceName:  cfg.AppName,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Insecure:     cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

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

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
	})
	if err := migrations.MigrateDB(cfg.DatabaseName, db); err != nil {
		return err
	}

	entities := entityrepo.NewRepository(db, logger)
	decisions := decisionrepo.NewRepository(db, logger)
	reviews := reviewrepo.NewRepository(db, logger)
	relationships := relationshiprepo.NewRepository(db, logger)
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
		logger.Infof("LLM arbitration enabled (provider: %s)", cfg.LLMProvider)
	}

	resolver := resolution.NewResolver(entities, finder, matcher, arbitrator, decisions, reviews, resolution.Config{
		AutoAcceptThreshold: cfg.AutoAcceptThreshold,
		ReviewThreshold:     cfg.ReviewThreshold,
	}, logger)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()

	emitter := events.NewEmitter(producer, logger)

	var projector *graph.Projector
	var queryService *graph.QueryService
	if cfg.GraphEnabled {
		graphClient, err := graph.NewClient(graph.Config{
			Host:     cfg.GraphDBHost,
			Port:     cfg.GraphDBPort,
			Username: cfg.GraphDBUser,
			Password: cfg.GraphDBPassword,
		}, logger)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = graphClient.Close(closeCtx)
		}()

		if err := graphClient.VerifyConnectivity(ctx); err != nil {
			return fmt.Errorf("graph database unreachable: %w", err)
		}

		projector = graph.NewProjector(graphClient, logger)
		queryService = graph.NewQueryService(graphClient, logger)
		logger.Info("Graph projection enabled")
	}

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return fmt.Errorf("failed to create DI container: %w", err)
	}
	if err := registerDependencies(container, dependencies{
		entities:      entities,
		decisions:     decisions,
		reviews:       reviews,
		relationships: relationships,
		agentServices: agentServices,
		resolver:      resolver,
		emitter:       emitter,
		projector:     projector,
		queryService:  queryService,
	}); err != nil {
		return err
	}

	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		sink := &resolutionSink{emitter: emitter, projector: projector, logger: logger}
		builder := processor.NewRelationshipBuilder(entities, relationships, agentServices, logger)
		proc := processor.NewProcessor(logger, resolver, sink, builder)

		consumer = kafka.NewConsumer(cfg, logger, proc.ProcessMessage)
		if err := consumer.Start(ctx); err != nil {
			return err
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	var consumerHealth health.ConsumerHealth
	if consumer != nil {
		consumerHealth = consumer
	}
	checker := health.NewChecker(db.Unsafe(), consumerHealth, version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	entityroutes.Register(api.Group("/entities"))
	reviewroutes.Register(api.Group("/reviews"))
	resolveroutes.Register(api.Group("/resolve"))
	agentserviceroutes.Register(api.Group("/agent-services"))
	if queryService != nil {
		graphroutes.NewHandler(queryService, logger).Register(api.Group("/graph"))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:  time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
	}

	go func() {
		logger.Infof("Starting %s on port %d", cfg.AppName, cfg.Port)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server stopped")
			stop()
		}
	}()

	checker.SetReady(true)

	<-ctx.Done()
	checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down HTTP server cleanly")
	}

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.WithError(err).Error("Failed to stop Kafka consumer cleanly")
		}
	}

	return nil
}

// dependencies collects everything the request-scoped handlers resolve
// from the DI container.
type dependencies struct {
	entities      *entityrepo.Repository
	decisions     *decisionrepo.Repository
	reviews       *reviewrepo.Repository
	relationships *relationshiprepo.Repository
	agentServices *agentrepo.Repository
	resolver      *resolution.Resolver
	emitter       *events.Emitter
	projector     *graph.Projector
	queryService  *graph.QueryService
}

func registerDependencies(container ectocontainer.DIContainer, deps dependencies) error {
	if err := ectoinject.RegisterInstance[*entityrepo.Repository](container, deps.entities); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*decisionrepo.Repository](container, deps.decisions); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*reviewrepo.Repository](container, deps.reviews); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*relationshiprepo.Repository](container, deps.relationships); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*agentrepo.Repository](container, deps.agentServices); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*resolution.Resolver](container, deps.resolver); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*events.Emitter](container, deps.emitter); err != nil {
		return err
	}
	if deps.projector != nil {
		if err := ectoinject.RegisterInstance[*graph.Projector](container, deps.projector); err != nil {
			return err
		}
	}
	if deps.queryService != nil {
		if err := ectoinject.RegisterInstance[*graph.QueryService](container, deps.queryService); err != nil {
			return err
		}
	}
	return nil
}

// resolutionSink fans a resolution result out to the Kafka emitter and,
// when enabled, the graph projection. Projection failures are logged and
// swallowed; the graph is a read model rebuilt from Postgres on demand.
type resolutionSink struct {
	emitter   *events.Emitter
	projector *graph.Projector
	logger    ectologger.Logger
}

func (s *resolutionSink) EmitResolution(ctx context.Context, result *models.MatchResult, source models.SourceContext) error {
	if s.projector != nil && result.Entity != nil {
		if err := s.projector.ProjectEntity(ctx, result.Entity); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warnf("Failed to project entity %s", result.Entity.ID)
		}
	}
	return s.emitter.EmitResolution(ctx, result, source)
}
