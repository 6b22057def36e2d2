package routes

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/inkdex/inkdex/cmd/api-server/middleware"
	"github.com/inkdex/inkdex/internal/upload"
	"github.com/inkdex/inkdex/pkg/types"
)

func registerUploadRoutes(api *gin.RouterGroup, services *Services, requireAuth gin.HandlerFunc) {
	group := api.Group("/upload")
	group.Use(requireAuth)
	{
		group.POST("/begin", handleBeginUpload(services.Upload))
		group.GET("/:session_id", handleGetUpload(services.Upload))
		group.POST("/:session_id", handleAddPages(services.Upload))
		group.DELETE("/:session_id", handleDeleteUpload(services.Upload))
		group.DELETE("/:session_id/files", handleRemoveAllBlobs(services.Upload))
		group.DELETE("/:session_id/:file_id", handleRemoveBlob(services.Upload))
		group.POST("/:session_id/slice", handleSlice(services.Upload))
		group.POST("/:session_id/commit", handleCommit(services.Upload))
	}
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		respondError(c, types.BadInput("Invalid session id"))
		return uuid.Nil, false
	}
	return id, true
}

func handleBeginUpload(uploadService *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.BeginUploadSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, types.BadInput("Invalid request format"))
			return
		}

		session, err := uploadService.Begin(c.Request.Context(), middleware.CurrentUser(c), req.MangaID, req.ChapterID)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusCreated, session)
	}
}

func handleGetUpload(uploadService *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionID(c)
		if !ok {
			return
		}

		session, err := uploadService.Get(c.Request.Context(), middleware.CurrentUser(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, session)
	}
}

func handleAddPages(uploadService *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionID(c)
		if !ok {
			return
		}

		form, err := c.MultipartForm()
		if err != nil {
			respondError(c, types.BadInput("Invalid multipart form"))
			return
		}
		headers := form.File["payload"]
		if len(headers) == 0 {
			respondError(c, types.BadInput("At least one page needs to be provided"))
			return
		}

		files := make([]upload.File, len(headers))
		for i, header := range headers {
			header := header
			files[i] = upload.File{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Open: func() (io.ReadCloser, error) {
					return header.Open()
				},
			}
		}

		blobs, err := uploadService.AddPages(c.Request.Context(), middleware.CurrentUser(c), id, files)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusCreated, blobs)
	}
}

func handleDeleteUpload(uploadService *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionID(c)
		if !ok {
			return
		}

		if err := uploadService.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "OK")
	}
}

func handleRemoveAllBlobs(uploadService *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionID(c)
		if !ok {
			return
		}

		if err := uploadService.RemoveAllBlobs(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "OK")
	}
}

func handleRemoveBlob(uploadService *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionID(c)
		if !ok {
			return
		}
		blobID, err := uuid.Parse(c.Param("file_id"))
		if err != nil {
			respondError(c, types.BadInput("The blob doesn't exist in the session"))
			return
		}

		if err := uploadService.RemoveBlob(c.Request.Context(), middleware.CurrentUser(c), id, blobID); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "OK")
	}
}

func handleSlice(uploadService *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionID(c)
		if !ok {
			return
		}

		var blobIDs []uuid.UUID
		if err := c.ShouldBindJSON(&blobIDs); err != nil {
			respondError(c, types.BadInput("Invalid request format"))
			return
		}

		blobs, err := uploadService.Slice(c.Request.Context(), middleware.CurrentUser(c), id, blobIDs)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusCreated, blobs)
	}
}

func handleCommit(uploadService *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := sessionID(c)
		if !ok {
			return
		}

		var req types.CommitUploadSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, types.BadInput("Invalid request format"))
			return
		}

		chapter, outcome, err := uploadService.Commit(c.Request.Context(), middleware.CurrentUser(c), id, &req)
		if err != nil {
			respondError(c, err)
			return
		}

		// 201 for a freshly created chapter, 200 for an edit
		status := http.StatusCreated
		if outcome == upload.OutcomeReplaced {
			status = http.StatusOK
		}
		respondData(c, status, chapter)
	}
}
