package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/elvisthlg/whisper-api/internal/api/v1/handlers"
)

// Register wires the v1 transcription routes onto the (already
// authenticated) router group.
func Register(router *gin.RouterGroup, h *handlers.TranscriptionHandler) {
	transcriptions := router.Group("/transcriptions")
	{
		transcriptions.POST("", h.Create)
		transcriptions.GET("/:id", h.Get)
	}
}
