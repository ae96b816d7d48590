package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"datachat/src/core/ingestion"
	"datachat/src/embedding"
	"datachat/src/infrastructure/integrations/ollama"
	"datachat/src/infrastructure/job"
	"datachat/src/log"
	"datachat/src/storage/minioctrl"
	"datachat/src/storage/weaviate"

	weaviateClient "github.com/weaviate/weaviate-go-client/v4/weaviate"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background ingestion worker",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	settingDefaultConfig()
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Initialize logger
	logger := watermill.NewStdLogger(false, false)

	// Initialize PostgreSQL connection
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		viper.GetString("postgres.host"),
		viper.GetString("postgres.user"),
		viper.GetString("postgres.password"),
		viper.GetString("postgres.db"),
		viper.GetString("postgres.port"))
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	// Get underlying *sql.DB for cleanup
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %v", err)
	}
	defer sqlDB.Close()

	// Initialize AMQP publisher
	amqpPublisher, err := amqp.NewPublisher(
		amqp.NewDurableQueueConfig(viper.GetString("amqp.url")),
		logger,
	)
	if err != nil {
		return err
	}
	defer amqpPublisher.Close()

	// Initialize AMQP subscriber
	subscriberConfig := amqp.NewDurableQueueConfig(viper.GetString("amqp.url"))
	subscriberConfig.Consume.NoRequeueOnNack = true
	amqpSubscriber, err := amqp.NewSubscriber(subscriberConfig, logger)
	if err != nil {
		return err
	}
	defer amqpSubscriber.Close()

	// Initialize router
	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return err
	}

	// Add middleware
	router.AddMiddleware(
		middleware.Recoverer,
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: time.Second,
			Logger:          logger,
		}.Middleware,
	)

	// Initialize Weaviate-backed vector index and embedding sink
	wc := weaviateClient.New(weaviateClient.Config{
		Host:   viper.GetString("weaviate.url"),
		Scheme: "http",
	})
	index := weaviate.NewIndex(wc, viper.GetString("weaviate.class"))

	oc := ollama.NewClient(viper.GetString("ollama.url"), &http.Client{
		Timeout: 60 * time.Second,
	})
	embedder, err := embedding.NewOllamaEmbedder(oc, viper.GetString("ollama.embedding_model"))
	if err != nil {
		return fmt.Errorf("failed to create embedder: %v", err)
	}
	sink, err := embedding.NewSink(embedder, index)
	if err != nil {
		return fmt.Errorf("failed to create embedding sink: %v", err)
	}
	defer sink.Release()
	if err := sink.Initialize(cmd.Context()); err != nil {
		return fmt.Errorf("failed to initialize embedding sink: %v", err)
	}

	// Initialize MinioService for staged sources
	minioService, err := minioctrl.NewMinioService(
		viper.GetString("minio.endpoint"),
		viper.GetString("minio.access_key"),
		viper.GetString("minio.secret_key"),
		viper.GetBool("minio.use_ssl"),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize minio service: %v", err)
	}

	// Initialize ingestion pipeline and task
	pipeline, err := ingestion.NewPipeline(sink)
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %v", err)
	}
	ingestTask := job.NewIngestTask(pipeline, minioService)

	// Initialize job repository and service
	jobRepo, err := job.NewPostgresRepository(db)
	if err != nil {
		return fmt.Errorf("failed to initialize job repository: %v", err)
	}
	jobService, err := job.NewService(amqpPublisher, jobRepo, logger, ingestTask)
	if err != nil {
		return fmt.Errorf("failed to create job service: %v", err)
	}

	// Add handler for processing ingestion batches
	router.AddNoPublisherHandler(
		"ingestion_processor",
		job.IngestionTopic,
		amqpSubscriber,
		func(msg *message.Message) error {
			return jobService.ProcessMessage(msg)
		},
	)

	// Run the router
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := router.Run(ctx); err != nil {
			log.Error(err, "Router stopped unexpectedly")
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	log.Info("Shutting down...")
	cancel()
	<-router.Running()
	log.Info("Router stopped")

	return nil
}
