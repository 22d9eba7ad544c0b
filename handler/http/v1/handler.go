package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"deepsearch/src/core/rag"
	"deepsearch/src/fsutil"
	"deepsearch/src/infrastructure/job"
	"deepsearch/src/storage/postgres/querylogctrl"
	"deepsearch/src/storage/valkey"
)

// AnswerCache is the subset of the valkey cache the handlers need.
type AnswerCache interface {
	Get(ctx context.Context, key string) (*valkey.CachedAnswer, bool)
	Set(ctx context.Context, key string, value *valkey.CachedAnswer)
}

// QueryLogger persists one record per answered question.
type QueryLogger interface {
	Create(ctx context.Context, question, answer string, sources []string, inputTokens, outputTokens, responseTimeMs int) (*querylogctrl.QueryLog, error)
	ListRecent(ctx context.Context, limit int) ([]querylogctrl.QueryLog, error)
	ListSlowest(ctx context.Context, limit int) ([]querylogctrl.QueryLog, error)
}

// JobEnqueuer schedules background tasks.
type JobEnqueuer interface {
	EnqueueJob(ctx context.Context, taskType string, payload json.RawMessage) (*job.Job, error)
}

// ObjectArchive keeps a copy of every uploaded document in object storage.
type ObjectArchive interface {
	PutObject(ctx context.Context, bucketName, objectName string, data []byte) error
	RemoveObject(ctx context.Context, bucketName, objectName string) error
}

// ComponentPings holds one reachability probe per backing service. A nil
// probe reports the component as down.
type ComponentPings struct {
	Postgres func(ctx context.Context) error
	Valkey   func(ctx context.Context) error
	Weaviate func(ctx context.Context) error
	Ollama   func(ctx context.Context) error
}

// Config carries the handler settings that are not injected services.
type Config struct {
	DocumentsDir    string
	DocumentsBucket string
	TopK            int
	Pings           ComponentPings
}

type Handler struct {
	ragService    rag.Service
	answerService rag.AnswerService
	cache         AnswerCache
	queryLogs     QueryLogger
	files         fsutil.FileStore
	archive       ObjectArchive
	jobService    JobEnqueuer
	cfg           Config
}

func NewHandler(
	ragService rag.Service,
	answerService rag.AnswerService,
	cache AnswerCache,
	queryLogs QueryLogger,
	files fsutil.FileStore,
	archive ObjectArchive,
	jobService JobEnqueuer,
	cfg Config,
) *Handler {
	if cfg.TopK <= 0 {
		cfg.TopK = rag.DefaultTopK
	}
	return &Handler{
		ragService:    ragService,
		answerService: answerService,
		cache:         cache,
		queryLogs:     queryLogs,
		files:         files,
		archive:       archive,
		jobService:    jobService,
		cfg:           cfg,
	}
}

// RegisterRoutes registers all v1 API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")

	// Question answering
	v1.POST("/ask", h.Ask)

	// Document routes
	v1.GET("/documents", h.ListDocuments)
	v1.POST("/documents", h.UploadDocuments)
	v1.DELETE("/documents/:filename", h.DeleteDocument)

	// Query log routes
	v1.GET("/query-logs", h.ListQueryLogs)

	// Admin routes
	v1.POST("/admin/reindex", h.Reindex)

	// System routes
	v1.GET("/health", h.CheckHealth)
}

// Common error response structure
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func sendError(c *gin.Context, status int, err error) {
	var code string
	switch {
	case errors.Is(err, rag.ErrUnsupportedFormat):
		code = "UNSUPPORTED_FORMAT"
		status = http.StatusBadRequest
	case status == http.StatusBadRequest:
		code = "BAD_REQUEST"
	case status == http.StatusNotFound:
		code = "NOT_FOUND"
	default:
		code = "INTERNAL_ERROR"
		status = http.StatusInternalServerError
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

func sendJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}
