package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	weaviateClient "github.com/weaviate/weaviate-go-client/v4/weaviate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	handler "datachat/handler/http"
	"datachat/src/core/chat"
	"datachat/src/core/ingestion"
	"datachat/src/embedding"
	"datachat/src/infrastructure/integrations/ollama"
	"datachat/src/infrastructure/job"
	"datachat/src/llm"
	"datachat/src/log"
	"datachat/src/storage/minioctrl"
	"datachat/src/storage/postgres/historyctrl"
	"datachat/src/storage/weaviate"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat and ingestion HTTP server",
	Long: `The serve command starts an HTTP server exposing the chat endpoints
and the ingestion API. Queued ingestion batches are published to the
message queue and picked up by the worker command.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	settingDefaultConfig()
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

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
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %v", err)
	}
	defer sqlDB.Close()

	// Initialize Weaviate-backed vector index
	wc := weaviateClient.New(weaviateClient.Config{
		Host:   viper.GetString("weaviate.url"),
		Scheme: "http",
	})
	index := weaviate.NewIndex(wc, viper.GetString("weaviate.class"))

	// Initialize Ollama client and embedding sink
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
	if err := sink.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize embedding sink: %v", err)
	}

	// Initialize LLM provider
	serverURL := strings.TrimSuffix(viper.GetString("ollama.url"), "/api")
	provider, err := llm.NewOllamaProvider(serverURL, viper.GetString("ollama.chat_model"))
	if err != nil {
		return fmt.Errorf("failed to create llm provider: %v", err)
	}
	holder := llm.NewHolder(provider)

	// Initialize chat history store
	history, err := historyctrl.NewHistoryService(db)
	if err != nil {
		return fmt.Errorf("failed to initialize history service: %v", err)
	}

	chatService, err := chat.NewService(sink, holder, history)
	if err != nil {
		return fmt.Errorf("failed to create chat service: %v", err)
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

	// Initialize AMQP publisher and job service
	logger := watermill.NewStdLogger(false, false)
	amqpPublisher, err := amqp.NewPublisher(
		amqp.NewDurableQueueConfig(viper.GetString("amqp.url")),
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create amqp publisher: %v", err)
	}
	defer amqpPublisher.Close()

	jobRepo, err := job.NewPostgresRepository(db)
	if err != nil {
		return fmt.Errorf("failed to initialize job repository: %v", err)
	}
	jobService, err := job.NewService(amqpPublisher, jobRepo, logger, ingestTask)
	if err != nil {
		return fmt.Errorf("failed to create job service: %v", err)
	}

	// Setup gin router
	r := gin.Default()
	h := handler.NewHandler(chatService, jobService, ingestTask, sink, minioService, oc, serverURL)
	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + viper.GetString("server.port"),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "Failed to start server")
		}
	}()
	log.Info("Server started", "port", viper.GetString("server.port"))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	timeout, err := time.ParseDuration(viper.GetString("server.shutdown_timeout"))
	if err != nil {
		log.Error(err, "Invalid shutdown timeout, using default 5s")
		timeout = 5 * time.Second
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Server forced to shutdown")
	}

	log.Info("Server exited")
	return nil
}
