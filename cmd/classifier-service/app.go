package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"sentinel/internal/audit"
	"sentinel/internal/broker"
	"sentinel/internal/classifier"
	"sentinel/internal/clientconfig"
	"sentinel/internal/comment"
	"sentinel/internal/config"
	"sentinel/internal/constants"
	"sentinel/internal/executor"
	"sentinel/internal/logger"
	"sentinel/internal/notify"
	"sentinel/internal/social"
	"sentinel/pkg/bootstrap"
	"sentinel/pkg/cel"
	"sentinel/pkg/health"
	"sentinel/pkg/metrics"
	"sentinel/pkg/models"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	mongoClient    *mongo.Client
	service        *classifier.Service
	extraConsumers []broker.Consumer
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("classifier-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.initService(ctx); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	if err := a.InitBroker("classifier-service"); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	metrics.RegisterClassifierMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterCircuitBreakerMetrics()

	a.initHTTPServer()

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	redisClient, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redisClient = redisClient

	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("postgresql is required for the audit trail")
	}
	a.db = db

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	if mongoClient == nil {
		return fmt.Errorf("mongodb is required for the classifier service")
	}
	a.mongoClient = mongoClient

	return nil
}

func (a *App) initService(ctx context.Context) error {
	dbName := a.Config.Database.MongoDB.Database
	if dbName == "" {
		dbName = constants.DefaultMongoDBName
	}
	mongoDB := a.mongoClient.Database(dbName)

	configProvider := clientconfig.NewProvider(
		clientconfig.NewRepository(mongoDB),
		a.redisClient,
		a.Config.Database.Redis.TTLSeconds,
		a.Logger,
	)
	commentRepo := comment.NewRepository(mongoDB)
	auditRepo := audit.NewRepository(a.db)

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	llm, err := classifier.NewLLM(a.Config.Classifier.LLM)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	socialClient := social.NewClient(a.Config.Social, a.Logger)
	notifier := notify.NewWebhookNotifier(a.Config.Notify, a.Logger)

	exec := executor.New(commentRepo, configProvider, socialClient, notifier, auditRepo, a.Logger)

	a.service = classifier.NewService(
		commentRepo,
		configProvider,
		evaluator,
		llm,
		exec,
		auditRepo,
		a.Config.Broker.Kafka.MaxReceiveCount,
		a.Logger,
	)
	return nil
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}
	if len(a.Config.Broker.Kafka.Brokers) > 0 {
		healthRegistry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers[0]))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	inputTopic := a.Config.Broker.Kafka.InputTopic
	workers := a.Config.Classifier.Workers
	if workers <= 0 {
		workers = constants.DefaultWorkerCount
	}

	handler := func(cCtx context.Context, msg *models.QueueMessage) error {
		return a.service.HandleMessage(cCtx, msg)
	}

	if err := a.Consumer.Consume(gCtx, inputTopic, handler); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	// Additional consumers join the same group so partitions spread
	// across workers.
	for i := 1; i < workers; i++ {
		consumer, err := broker.NewConsumer(a.Config.Broker, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create worker consumer: %w", err)
		}
		consumer.SetServiceName("classifier-service")
		a.extraConsumers = append(a.extraConsumers, consumer)

		if err := consumer.Consume(gCtx, inputTopic, handler); err != nil {
			return fmt.Errorf("failed to start worker consumer: %w", err)
		}
	}

	a.Logger.InfowCtx(ctx, "Classifier workers started",
		"workers", workers,
		"topic", inputTopic,
	)

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfowCtx(ctx, "Shutting down classifier service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		for _, consumer := range a.extraConsumers {
			if err := consumer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("worker consumer close error: %w", err))
			}
		}

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
