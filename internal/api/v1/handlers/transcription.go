package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/elvisthlg/whisper-api/internal/api/errors"
	"github.com/elvisthlg/whisper-api/internal/api/middleware"
	"github.com/elvisthlg/whisper-api/internal/api/v1/dto"
	"github.com/elvisthlg/whisper-api/internal/app/transcribe"
)

// TranscriptionService is the dispatch boundary the handler talks to.
type TranscriptionService interface {
	Submit(ctx context.Context, req transcribe.SubmitRequest) (*transcribe.SubmitResult, error)
	Status(ctx context.Context, id string) (*transcribe.JobRecord, error)
}

// TranscriptionHandler serves the upload and status endpoints.
type TranscriptionHandler struct {
	service        TranscriptionService
	maxUploadBytes int64
}

// NewTranscriptionHandler creates a handler enforcing the given upload cap.
func NewTranscriptionHandler(service TranscriptionService, maxUploadBytes int64) *TranscriptionHandler {
	return &TranscriptionHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// Create handles POST /api/v1/transcriptions: accepts a multipart audio
// upload, runs it through the queued pipeline, and blocks until a result
// arrives or the wait timeout elapses.
func (h *TranscriptionHandler) Create(c *gin.Context) {
	var form dto.CreateTranscriptionForm
	if err := middleware.ValidateForm(c, &form); err != nil {
		middleware.HandleError(c, err)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		middleware.HandleError(c, apierrors.NewBadRequestError("no audio file uploaded"))
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		middleware.HandleError(c, apierrors.NewBadRequestError("uploaded file exceeds the maximum allowed size"))
		return
	}

	audio, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		middleware.HandleError(c, apierrors.NewBadRequestError("failed to read uploaded file"))
		return
	}
	if len(audio) == 0 {
		middleware.HandleError(c, apierrors.NewBadRequestError("uploaded file is empty"))
		return
	}
	if int64(len(audio)) > h.maxUploadBytes {
		middleware.HandleError(c, apierrors.NewBadRequestError("uploaded file exceeds the maximum allowed size"))
		return
	}

	result, err := h.service.Submit(c.Request.Context(), transcribe.SubmitRequest{
		Audio:    audio,
		Language: form.Language,
		Prompt:   form.Prompt,
		FileName: header.Filename,
		FileSize: header.Size,
	})
	if err != nil {
		middleware.HandleError(c, apierrors.FromDomain(err, result.TaskID))
		return
	}

	c.JSON(http.StatusOK, dto.TranscriptionResponse{
		TaskID: result.TaskID,
		Text:   result.Text,
	})
}

// Get handles GET /api/v1/transcriptions/:id: the status re-check for
// callers whose wait timed out.
func (h *TranscriptionHandler) Get(c *gin.Context) {
	id := c.Param("id")

	rec, err := h.service.Status(c.Request.Context(), id)
	if err != nil {
		middleware.HandleError(c, apierrors.FromDomain(err, id))
		return
	}

	c.JSON(http.StatusOK, dto.NewJobStatusResponse(rec))
}
