package routes

import (
	"errors"
	"net/http"

	"tutorbot-backend/internal/conversation"
	"tutorbot-backend/internal/index"
	"tutorbot-backend/internal/ingest"
	"tutorbot-backend/internal/storage"
	"tutorbot-backend/middleware"
	"tutorbot-backend/models"
	"tutorbot-backend/utils"

	"github.com/gin-gonic/gin"
)

func SetupAdminRoutes(router *gin.Engine, orchestrator *ingest.Orchestrator, idx *index.Store, coord *storage.Coordinator, store conversation.Store, authMiddleware *middleware.AuthMiddleware) {
	admin := router.Group("/admin")
	admin.Use(authMiddleware.RequireAuth(), middleware.AdminGuard())

	// Rebuild the vector index from the current corpus. Rejected with
	// 409 while another rebuild is running.
	admin.POST("/ingest", func(c *gin.Context) {
		result, err := orchestrator.Run(c.Request.Context())
		if err != nil {
			switch {
			case errors.Is(err, models.ErrIngestInProgress):
				utils.RespondWithConflict(c, "ingest_in_progress",
					"An ingestion run is already in progress. Try again when it completes.")
			case errors.Is(err, models.ErrEmbedding):
				utils.RespondWithServiceUnavailable(c, "embedding_unavailable", err.Error())
			default:
				utils.RespondWithInternalError(c, "Ingestion failed", gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":        "success",
			"version":       result.Version,
			"documents":     result.Documents,
			"passage_count": result.Passages,
			"skipped":       result.Skipped,
		})
	})

	// Index statistics.
	admin.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "success",
			"version":       idx.Version(),
			"passage_count": idx.Count(),
		})
	})

	// Health is unauthenticated so load balancers can probe it.
	router.GET("/health", func(c *gin.Context) {
		ctx := c.Request.Context()
		storageErr := coord.Healthy(ctx)
		convErr := store.Healthy(ctx)
		components := gin.H{
			"object_store":       statusOf(storageErr),
			"conversation_store": statusOf(convErr),
			"vector_index":       gin.H{"status": "ok", "passage_count": idx.Count()},
		}

		status := http.StatusOK
		overall := "ok"
		if storageErr != nil || convErr != nil {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "components": components})
	})
}

func statusOf(err error) gin.H {
	if err != nil {
		return gin.H{"status": "error", "error": err.Error()}
	}
	return gin.H{"status": "ok"}
}
