package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	weaviateClient "github.com/weaviate/weaviate-go-client/v4/weaviate"

	"datachat/src/core/ingestion"
	"datachat/src/embedding"
	"datachat/src/infrastructure/integrations/ollama"
	"datachat/src/infrastructure/job"
	"datachat/src/source"
	"datachat/src/storage/minioctrl"
	"datachat/src/storage/weaviate"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion batch from the command line",
	Long: `The ingest command loads a batch configuration file describing the
source and schema, runs the full pipeline against the vector index and
reports how many documents were indexed. Example configuration:

  {
    "source": {"kind": "csv", "csv": {"file_path": "products.csv", "has_header": true}},
    "ingestion": {
      "field_schema": [
        {"name": "title", "type": "text", "required": true},
        {"name": "price", "type": "float"}
      ],
      "text_fields": ["title"],
      "batch_size": 100
    }
  }`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	settingDefaultConfig()
	ingestCmd.Flags().StringP("config", "c", "", "Batch configuration JSON file path")
	ingestCmd.MarkFlagRequired("config")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	configPath, _ := cmd.Flags().GetString("config")

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read batch configuration: %v", err)
	}
	var payload job.IngestPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to parse batch configuration: %v", err)
	}
	if err := payload.Source.Validate(); err != nil {
		return err
	}
	if err := payload.Ingestion.Validate(); err != nil {
		return err
	}

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
	if err := sink.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize embedding sink: %v", err)
	}

	pipeline, err := ingestion.NewPipeline(sink)
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %v", err)
	}

	// Staged sources need object storage; local files do not.
	var stager job.Stager
	if payload.Source.Kind == source.KindCSV && payload.Source.CSV != nil && payload.Source.CSV.Bucket != "" {
		minioService, err := minioctrl.NewMinioService(
			viper.GetString("minio.endpoint"),
			viper.GetString("minio.access_key"),
			viper.GetString("minio.secret_key"),
			viper.GetBool("minio.use_ssl"),
		)
		if err != nil {
			return fmt.Errorf("failed to initialize minio service: %v", err)
		}
		stager = minioService
	}
	task := job.NewIngestTask(pipeline, stager)

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("indexing documents"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(os.Stderr),
	)
	onProgress := func(processed int) {
		_ = bar.Set(processed)
	}

	indexed, err := task.HandleIngestion(ctx, raw, onProgress)
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		if indexed > 0 {
			fmt.Printf("aborted after indexing %d documents\n", indexed)
		}
		return err
	}

	fmt.Printf("indexed %d documents\n", indexed)
	return nil
}
