package v1

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"deepsearch/src/core/rag"
	"deepsearch/src/infrastructure/job"
	"deepsearch/src/infrastructure/log"
)

type uploadResponse struct {
	Uploaded []string          `json:"uploaded"`
	Ingest   *rag.IngestResult `json:"ingest"`
}

// ListDocuments godoc
// @Summary List documents in the documents directory
// @Tags documents
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /documents [get]
func (h *Handler) ListDocuments(c *gin.Context) {
	files, err := h.files.ListFiles(h.cfg.DocumentsDir)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusOK, gin.H{
		"documents": files,
		"count":     len(files),
	})
}

// UploadDocuments godoc
// @Summary Upload documents and index them
// @Tags documents
// @Accept multipart/form-data
// @Param files formData file true "Document files"
// @Produce json
// @Success 200 {object} uploadResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /documents [post]
func (h *Handler) UploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		sendError(c, http.StatusBadRequest, fmt.Errorf("multipart form required: %w", err))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		sendError(c, http.StatusBadRequest, fmt.Errorf("at least one file is required"))
		return
	}

	// Reject the whole batch before writing anything.
	for _, header := range headers {
		if !rag.SupportedExtension(header.Filename) {
			sendError(c, http.StatusBadRequest,
				fmt.Errorf("%w: %s", rag.ErrUnsupportedFormat, filepath.Ext(header.Filename)))
			return
		}
	}

	ctx := c.Request.Context()
	saved := make([]string, 0, len(headers))
	names := make([]string, 0, len(headers))
	for _, header := range headers {
		filename := filepath.Base(header.Filename)
		file, err := header.Open()
		if err != nil {
			sendError(c, http.StatusInternalServerError, fmt.Errorf("failed to open upload %s: %w", filename, err))
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			sendError(c, http.StatusInternalServerError, fmt.Errorf("failed to read upload %s: %w", filename, err))
			return
		}

		path := filepath.Join(h.cfg.DocumentsDir, filename)
		if err := h.files.SaveFile(path, data); err != nil {
			sendError(c, http.StatusInternalServerError, fmt.Errorf("failed to save %s: %w", filename, err))
			return
		}

		// The archive copy is best-effort.
		if h.archive != nil {
			if err := h.archive.PutObject(ctx, h.cfg.DocumentsBucket, filename, data); err != nil {
				log.Error(err, "failed to archive document", "filename", filename)
			}
		}

		saved = append(saved, path)
		names = append(names, filename)
	}

	result, err := h.ragService.Ingest(ctx, rag.IngestRequest{
		Dir:   h.cfg.DocumentsDir,
		Paths: saved,
		Force: true,
	})
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusOK, uploadResponse{
		Uploaded: names,
		Ingest:   result,
	})
}

// DeleteDocument godoc
// @Summary Remove a document and its indexed chunks
// @Tags documents
// @Param filename path string true "Document filename"
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /documents/{filename} [delete]
func (h *Handler) DeleteDocument(c *gin.Context) {
	filename := c.Param("filename")
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		sendError(c, http.StatusBadRequest, fmt.Errorf("invalid filename"))
		return
	}

	ctx := c.Request.Context()

	// Index cleanup failures leave orphaned chunks but never block removal
	// of the file itself.
	if err := h.ragService.DeleteDocument(ctx, filename); err != nil {
		log.Error(err, "failed to delete indexed chunks", "filename", filename)
	}

	path := filepath.Join(h.cfg.DocumentsDir, filename)
	if err := h.files.Remove(path); err != nil {
		if os.IsNotExist(err) {
			sendError(c, http.StatusNotFound, fmt.Errorf("document not found: %s", filename))
			return
		}
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	if h.archive != nil {
		if err := h.archive.RemoveObject(ctx, h.cfg.DocumentsBucket, filename); err != nil {
			log.Error(err, "failed to remove archived document", "filename", filename)
		}
	}

	sendJSON(c, http.StatusOK, gin.H{"deleted": filename})
}

// Reindex godoc
// @Summary Schedule a background re-ingestion of the documents directory
// @Tags admin
// @Accept json
// @Produce json
// @Success 202 {object} map[string]interface{}
// @Failure 500 {object} ErrorResponse
// @Router /admin/reindex [post]
func (h *Handler) Reindex(c *gin.Context) {
	var req struct {
		Force bool `json:"force"`
	}
	// An empty body means force=false.
	_ = c.ShouldBindJSON(&req)

	payload, err := json.Marshal(job.ReindexPayload{Force: req.Force})
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	j, err := h.jobService.EnqueueJob(c.Request.Context(), job.TaskTypeReindex, payload)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusAccepted, gin.H{
		"job_id": j.ID,
		"status": j.Status,
	})
}
