package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListQueryLogs godoc
// @Summary List recorded questions and their timings
// @Tags query-logs
// @Param limit query int false "Maximum entries to return"
// @Param order query string false "recent (default) or slowest"
// @Produce json
// @Success 200 {array} querylogctrl.QueryLog
// @Failure 500 {object} ErrorResponse
// @Router /query-logs [get]
func (h *Handler) ListQueryLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	var (
		logs interface{}
		err  error
	)
	switch c.DefaultQuery("order", "recent") {
	case "slowest":
		logs, err = h.queryLogs.ListSlowest(c.Request.Context(), limit)
	default:
		logs, err = h.queryLogs.ListRecent(c.Request.Context(), limit)
	}
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusOK, logs)
}
