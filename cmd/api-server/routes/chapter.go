package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/inkdex/inkdex/cmd/api-server/middleware"
	"github.com/inkdex/inkdex/internal/library"
	"github.com/inkdex/inkdex/pkg/types"
)

func registerChapterRoutes(api *gin.RouterGroup, services *Services, requireAuth gin.HandlerFunc) {
	group := api.Group("/chapters")
	{
		group.GET("/latest", handleLatestChapters(services.Library))
		group.GET("/scan-groups", handleScanGroups(services.Library))
		group.GET("/:chapter_id", handleGetChapter(services.Library))

		group.PUT("/:chapter_id", requireAuth, handleUpdateChapter(services.Library))
		group.DELETE("/:chapter_id", requireAuth, handleDeleteChapter(services.Library))
	}
}

func chapterID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("chapter_id"))
	if err != nil {
		respondError(c, types.NotFound("Chapter not found"))
		return uuid.Nil, false
	}
	return id, true
}

func handleLatestChapters(libraryService *library.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		chapters, total, err := libraryService.LatestChapters(c.Request.Context(), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		respondPage(c, chapters, limit, offset, total)
	}
}

func handleScanGroups(libraryService *library.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		groups, err := libraryService.ScanGroups(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, groups)
	}
}

func handleGetChapter(libraryService *library.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := chapterID(c)
		if !ok {
			return
		}

		chapter, err := libraryService.GetChapter(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, chapter)
	}
}

func handleUpdateChapter(libraryService *library.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := chapterID(c)
		if !ok {
			return
		}

		var draft types.ChapterDraft
		if err := c.ShouldBindJSON(&draft); err != nil {
			respondError(c, types.BadInput("Invalid request format"))
			return
		}

		chapter, err := libraryService.UpdateChapter(c.Request.Context(), middleware.CurrentUser(c), id, &draft)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, chapter)
	}
}

func handleDeleteChapter(libraryService *library.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := chapterID(c)
		if !ok {
			return
		}

		if err := libraryService.DeleteChapter(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "OK")
	}
}
