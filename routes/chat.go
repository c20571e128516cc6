package routes

import (
	"errors"
	"net/http"

	"tutorbot-backend/internal/config"
	"tutorbot-backend/internal/conversation"
	"tutorbot-backend/internal/query"
	"tutorbot-backend/middleware"
	"tutorbot-backend/models"
	"tutorbot-backend/utils"

	"github.com/gin-gonic/gin"
)

func SetupChatRoutes(router *gin.Engine, cfg *config.Config, engine *query.Engine, store conversation.Store, authMiddleware *middleware.AuthMiddleware) {
	api := router.Group("/api")
	api.Use(authMiddleware.RequireAuth())

	// Ask a question against the indexed course materials.
	api.POST("/query", func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		resp, err := engine.Answer(c.Request.Context(), req)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrUnsupportedOperation):
				utils.RespondWithBadRequest(c, err.Error(), nil)
			case errors.Is(err, models.ErrModelUnavailable):
				utils.RespondWithServiceUnavailable(c, "model_unavailable",
					"The tutoring model is temporarily unavailable. Please try again shortly.")
			case errors.Is(err, models.ErrEmbedding):
				utils.RespondWithServiceUnavailable(c, "embedding_unavailable",
					"Question processing is temporarily unavailable. Please try again shortly.")
			default:
				utils.RespondWithInternalError(c, "Failed to answer question", gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	// Return the full conversation log for a user, oldest first.
	api.POST("/history", func(c *gin.Context) {
		var req models.HistoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		turns, err := store.History(c.Request.Context(), req.UserID, 0)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load history", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation": turns, "count": len(turns)})
	})
}
