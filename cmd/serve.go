package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
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

	v1 "deepsearch/handler/http/v1"
	"deepsearch/src/core/rag"
	"deepsearch/src/fsutil"
	"deepsearch/src/infrastructure/integrations/ollama"
	jobctrl "deepsearch/src/infrastructure/job"
	"deepsearch/src/infrastructure/log"
	"deepsearch/src/storage/minioctrl"
	"deepsearch/src/storage/postgres/querylogctrl"
	valkeycache "deepsearch/src/storage/valkey"
	"deepsearch/src/storage/weaviate"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the question answering server",
	Long: `The serve command starts an HTTP server that answers questions from
the indexed documents. On startup it ingests the documents directory unless
the vector index is already populated.`,
	Run: RunServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	settingDefaultConfig()
}

func RunServer(cmd *cobra.Command, args []string) {
	// Initialize PostgreSQL connection
	host := viper.GetString("postgres.host")
	user := viper.GetString("postgres.user")
	password := viper.GetString("postgres.password")
	dbname := viper.GetString("postgres.db")
	port := viper.GetString("postgres.port")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, user, password, dbname, port)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Error(err, "Failed to connect to database")
		return
	}

	// Initialize Ollama client
	oc := ollama.NewClient(viper.GetString("ollama.url"), &http.Client{
		Timeout: 120 * time.Second,
	})

	// Initialize Weaviate client and index
	wc := weaviateClient.New(weaviateClient.Config{
		Host:   viper.GetString("weaviate.host"),
		Scheme: viper.GetString("weaviate.scheme"),
	})
	index, err := weaviate.NewIndex(wc,
		oc,
		viper.GetString("weaviate.class"),
		viper.GetString("rag.embedding_model"),
	)
	if err != nil {
		log.Error(err, "Failed to create vector index")
		return
	}

	// Initialize answer cache
	ttl, err := time.ParseDuration(viper.GetString("rag.cache_ttl"))
	if err != nil {
		log.Error(err, "Invalid cache TTL, using default 1h")
		ttl = time.Hour
	}
	cacheAddr := fmt.Sprintf("%s:%d",
		viper.GetString("valkey.host"),
		viper.GetInt("valkey.port"))
	cache, err := valkeycache.NewAnswerCache(cacheAddr, ttl)
	if err != nil {
		log.Error(err, "Failed to create answer cache")
		return
	}
	defer cache.Close()

	// Initialize MinioService for the upload archive
	minioService, err := minioctrl.NewMinioService(
		viper.GetString("minio.endpoint"),
		viper.GetString("minio.access_key"),
		viper.GetString("minio.secret_key"),
		viper.GetBool("minio.use_ssl"),
	)
	if err != nil {
		log.Error(err, "Failed to initialize minio service")
		return
	}
	documentsBucket := viper.GetString("minio.documents_bucket")
	if err := minioService.EnsureBucketExists(context.Background(), documentsBucket); err != nil {
		log.Error(err, "Failed to ensure documents bucket", "bucket", documentsBucket)
	}

	// Initialize core services
	documentsDir := viper.GetString("rag.documents_path")
	chunker := rag.NewChunker(viper.GetInt("rag.chunk_size"), viper.GetInt("rag.chunk_overlap"))
	ragService, err := rag.NewService(index, chunker)
	if err != nil {
		log.Error(err, "Failed to create rag service")
		return
	}
	answerService := rag.NewAnswerService(oc,
		viper.GetString("rag.answer_model"),
		viper.GetString("rag.answer_prompt"),
	)

	queryLogService, err := querylogctrl.NewQueryLogService(db)
	if err != nil {
		log.Error(err, "Failed to create query log service")
		return
	}

	// Initialize job publisher for /admin/reindex
	amqpPublisher, err := amqp.NewPublisher(
		amqp.NewDurableQueueConfig(viper.GetString("amqp.url")),
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		log.Error(err, "Failed to create amqp publisher")
		return
	}
	defer amqpPublisher.Close()

	jobRepo := jobctrl.NewPostgresJobRepository(db)
	jobService := jobctrl.NewJobService(amqpPublisher, jobRepo,
		watermill.NewStdLogger(false, false), ragService, documentsDir)

	// Initialize file store
	fs := fsutil.NewLocalFileStore()
	if err := fs.MakeDirectory(documentsDir); err != nil {
		log.Error(err, "Failed to create documents directory", "path", documentsDir)
		return
	}

	// Index the documents directory on startup. A failure here leaves the
	// index as it was; the server still starts.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Minute)
	result, err := ragService.Ingest(startupCtx, rag.IngestRequest{Dir: documentsDir})
	cancelStartup()
	if err != nil {
		log.Error(err, "Startup ingestion failed")
	} else {
		log.Info("Startup ingestion finished",
			"added_chunks", result.ChunksAdded,
			"documents_count", result.DocumentsCount)
	}

	// Initialize HTTP handler
	handler := v1.NewHandler(
		ragService,
		answerService,
		cache,
		queryLogService,
		fs,
		minioService,
		jobService,
		v1.Config{
			DocumentsDir:    documentsDir,
			DocumentsBucket: documentsBucket,
			TopK:            viper.GetInt("rag.top_k"),
			Pings: v1.ComponentPings{
				Postgres: func(ctx context.Context) error {
					sqlDB, err := db.DB()
					if err != nil {
						return err
					}
					return sqlDB.PingContext(ctx)
				},
				Valkey: cache.Ping,
				Weaviate: func(ctx context.Context) error {
					_, err := index.Count(ctx)
					return err
				},
				Ollama: func(ctx context.Context) error {
					_, err := oc.Models(ctx)
					return err
				},
			},
		},
	)

	// Setup gin router
	r := gin.Default()

	// Register routes
	handler.RegisterRoutes(r)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + viper.GetString("server.port"),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "Failed to start server")
			return
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Parse shutdown timeout
	timeout, err := time.ParseDuration(viper.GetString("server.shutdown_timeout"))
	if err != nil {
		log.Error(err, "Invalid shutdown timeout, using default 5s")
		timeout = 5 * time.Second
	}

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Get underlying *sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		log.Error(err, "Failed to get underlying *sql.DB")
	} else {
		// Close database connection
		if err := sqlDB.Close(); err != nil {
			log.Error(err, "Error closing database connection")
		}
	}

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "Server forced to shutdown")
	}

	log.Info("Server exited")
}
