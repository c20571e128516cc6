package routes

import (
	"errors"
	"net/http"
	"strings"

	"tutorbot-backend/internal/config"
	"tutorbot-backend/internal/storage"
	"tutorbot-backend/middleware"
	"tutorbot-backend/models"
	"tutorbot-backend/utils"

	"github.com/gin-gonic/gin"
)

func SetupFileRoutes(router *gin.Engine, cfg *config.Config, coord *storage.Coordinator, authMiddleware *middleware.AuthMiddleware) {
	api := router.Group("/api")
	api.Use(authMiddleware.RequireAuth())

	admin := router.Group("/admin")
	admin.Use(authMiddleware.RequireAuth(), middleware.AdminGuard())

	// Upload a course PDF.
	admin.POST("/files", func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "Missing file upload", gin.H{"error": err.Error()})
			return
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
			utils.RespondWithBadRequest(c, "Only PDF files are allowed", nil)
			return
		}
		if fileHeader.Size > cfg.MaxFileSize {
			utils.RespondWithBadRequest(c, "File exceeds maximum size", gin.H{"max_bytes": cfg.MaxFileSize})
			return
		}

		f, err := fileHeader.Open()
		if err != nil {
			utils.RespondWithBadRequest(c, "Unreadable file upload", gin.H{"error": err.Error()})
			return
		}
		defer f.Close()

		doc, err := coord.Upload(c.Request.Context(), fileHeader.Filename, f)
		if err != nil {
			respondStorageError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"status":   "success",
			"filename": doc.Filename,
			"size":     doc.Size,
			"tier":     doc.Tier,
		})
	})

	// List the corpus: filenames plus the presentation-name mapping.
	api.GET("/files", func(c *gin.Context) {
		docs, err := coord.List(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list files", gin.H{"error": err.Error()})
			return
		}
		filenames := make([]string, 0, len(docs))
		displayNames := make(map[string]string, len(docs))
		for _, d := range docs {
			filenames = append(filenames, d.Filename)
			displayNames[d.Filename] = d.DisplayName
		}
		c.JSON(http.StatusOK, gin.H{
			"files":         filenames,
			"display_names": displayNames,
			"count":         len(filenames),
		})
	})

	// Delete a PDF from every storage tier.
	admin.DELETE("/files/:filename", func(c *gin.Context) {
		if err := coord.Delete(c.Request.Context(), c.Param("filename")); err != nil {
			respondStorageError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	// Rename how a file is presented in citations and listings.
	api.PUT("/files/:filename/display-name", func(c *gin.Context) {
		var req struct {
			DisplayName string `json:"display_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "display_name is required", gin.H{"error": err.Error()})
			return
		}
		if err := coord.SetDisplayName(c.Request.Context(), c.Param("filename"), req.DisplayName); err != nil {
			respondStorageError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	// Fetch the file itself: a presigned redirect in remote mode, a
	// byte stream in local mode.
	api.GET("/files/:filename", func(c *gin.Context) {
		filename := c.Param("filename")
		url, err := coord.Presign(c.Request.Context(), filename, cfg.PresignTTL)
		switch {
		case err == nil:
			c.Redirect(http.StatusTemporaryRedirect, url)
		case errors.Is(err, models.ErrUnsupportedOperation):
			path, err := coord.FetchLocal(c.Request.Context(), filename)
			if err != nil {
				respondStorageError(c, err)
				return
			}
			c.FileAttachment(path, filename)
		default:
			respondStorageError(c, err)
		}
	})
}

// respondStorageError maps storage sentinel errors to HTTP statuses.
func respondStorageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		utils.RespondWithNotFound(c, err.Error())
	case errors.Is(err, models.ErrUnsupportedOperation):
		utils.RespondWithBadRequest(c, err.Error(), nil)
	case errors.Is(err, models.ErrStorageWrite), errors.Is(err, models.ErrPersistence):
		utils.RespondWithInternalError(c, "Storage operation failed", gin.H{"error": err.Error()})
	default:
		utils.RespondWithInternalError(c, "Unexpected storage error", gin.H{"error": err.Error()})
	}
}
