package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"deepsearch/src/infrastructure/log"
	"deepsearch/src/storage/valkey"
)

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

type askResponse struct {
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources"`
	Cached         bool     `json:"cached"`
	ResponseTimeMs int      `json:"response_time_ms"`
}

// Ask godoc
// @Summary Answer a question from the indexed documents
// @Tags ask
// @Accept json
// @Produce json
// @Param body body askRequest true "Question"
// @Success 200 {object} askResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /ask [post]
func (h *Handler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	start := time.Now()
	key := valkey.HashQuery(req.Question)

	if cached, ok := h.cache.Get(ctx, key); ok {
		sendJSON(c, http.StatusOK, askResponse{
			Answer:         cached.Answer,
			Sources:        cached.Sources,
			Cached:         true,
			ResponseTimeMs: int(time.Since(start).Milliseconds()),
		})
		return
	}

	hits, err := h.ragService.Retrieve(ctx, req.Question, h.cfg.TopK)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	answer, err := h.answerService.GenerateAnswer(ctx, req.Question, hits)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	elapsed := int(time.Since(start).Milliseconds())

	// Neither a failed log write nor a failed cache write fails the request.
	if _, err := h.queryLogs.Create(ctx, req.Question, answer.Text, answer.Sources,
		answer.PromptTokens, answer.CompletionTokens, elapsed); err != nil {
		log.Error(err, "failed to record query log", "question", req.Question)
	}
	h.cache.Set(ctx, key, &valkey.CachedAnswer{
		Answer:  answer.Text,
		Sources: answer.Sources,
	})

	sendJSON(c, http.StatusOK, askResponse{
		Answer:         answer.Text,
		Sources:        answer.Sources,
		Cached:         false,
		ResponseTimeMs: elapsed,
	})
}
