package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	v1 "deepsearch/handler/http/v1"
	"deepsearch/src/core/rag"
	"deepsearch/src/fsutil"
	"deepsearch/src/infrastructure/job"
	"deepsearch/src/storage/postgres/querylogctrl"
	"deepsearch/src/storage/valkey"
)

type fakeRagService struct {
	hits      []rag.QueryHit
	ingestErr error

	retrieveCalls int
	lastIngest    *rag.IngestRequest
	deleted       []string
}

func (f *fakeRagService) Ingest(ctx context.Context, req rag.IngestRequest) (*rag.IngestResult, error) {
	f.lastIngest = &req
	if f.ingestErr != nil {
		return nil, f.ingestErr
	}
	return &rag.IngestResult{
		ChunksAdded:    4,
		DocumentsCount: len(req.Paths),
		ProcessedFiles: []string{},
	}, nil
}

func (f *fakeRagService) Retrieve(ctx context.Context, question string, k int) ([]rag.QueryHit, error) {
	f.retrieveCalls++
	if k < len(f.hits) {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func (f *fakeRagService) DeleteDocument(ctx context.Context, filename string) error {
	f.deleted = append(f.deleted, filename)
	return nil
}

type fakeAnswerService struct {
	answer *rag.Answer
	err    error
}

func (f *fakeAnswerService) GenerateAnswer(ctx context.Context, question string, contexts []rag.QueryHit) (*rag.Answer, error) {
	return f.answer, f.err
}

type fakeCache struct {
	entries map[string]*valkey.CachedAnswer
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*valkey.CachedAnswer)}
}

func (f *fakeCache) Get(ctx context.Context, key string) (*valkey.CachedAnswer, bool) {
	cached, ok := f.entries[key]
	return cached, ok
}

func (f *fakeCache) Set(ctx context.Context, key string, value *valkey.CachedAnswer) {
	f.entries[key] = value
}

type loggedQuery struct {
	question       string
	answer         string
	sources        []string
	inputTokens    int
	outputTokens   int
	responseTimeMs int
}

type fakeQueryLogs struct {
	created []loggedQuery
}

func (f *fakeQueryLogs) Create(ctx context.Context, question, answer string, sources []string, inputTokens, outputTokens, responseTimeMs int) (*querylogctrl.QueryLog, error) {
	f.created = append(f.created, loggedQuery{
		question:       question,
		answer:         answer,
		sources:        sources,
		inputTokens:    inputTokens,
		outputTokens:   outputTokens,
		responseTimeMs: responseTimeMs,
	})
	return &querylogctrl.QueryLog{}, nil
}

func (f *fakeQueryLogs) ListRecent(ctx context.Context, limit int) ([]querylogctrl.QueryLog, error) {
	return []querylogctrl.QueryLog{}, nil
}

func (f *fakeQueryLogs) ListSlowest(ctx context.Context, limit int) ([]querylogctrl.QueryLog, error) {
	return []querylogctrl.QueryLog{}, nil
}

type fakeEnqueuer struct {
	taskType string
	payload  json.RawMessage
}

func (f *fakeEnqueuer) EnqueueJob(ctx context.Context, taskType string, payload json.RawMessage) (*job.Job, error) {
	f.taskType = taskType
	f.payload = payload
	return &job.Job{ID: 7, TaskType: taskType, Status: job.JobStatusPending}, nil
}

type testEnv struct {
	router    *gin.Engine
	ragSvc    *fakeRagService
	answerSvc *fakeAnswerService
	cache     *fakeCache
	queryLogs *fakeQueryLogs
	enqueuer  *fakeEnqueuer
	docsDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		ragSvc: &fakeRagService{
			hits: []rag.QueryHit{
				{Text: "relevant chunk", Source: "guide.pdf", Distance: 0.1},
			},
		},
		answerSvc: &fakeAnswerService{
			answer: &rag.Answer{
				Text:             "generated answer",
				Sources:          []string{"guide.pdf"},
				PromptTokens:     11,
				CompletionTokens: 22,
			},
		},
		cache:     newFakeCache(),
		queryLogs: &fakeQueryLogs{},
		enqueuer:  &fakeEnqueuer{},
		docsDir:   t.TempDir(),
	}

	handler := v1.NewHandler(
		env.ragSvc,
		env.answerSvc,
		env.cache,
		env.queryLogs,
		fsutil.NewLocalFileStore(),
		nil,
		env.enqueuer,
		v1.Config{
			DocumentsDir: env.docsDir,
			TopK:         3,
		},
	)

	env.router = gin.New()
	handler.RegisterRoutes(env.router)
	return env
}

func (env *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
}
