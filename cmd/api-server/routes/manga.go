package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/inkdex/inkdex/cmd/api-server/middleware"
	"github.com/inkdex/inkdex/internal/library"
	"github.com/inkdex/inkdex/pkg/types"
)

func registerMangaRoutes(api *gin.RouterGroup, services *Services, requireAuth gin.HandlerFunc) {
	group := api.Group("/manga")
	{
		group.GET("", handleSearchManga(services.Library))
		group.GET("/:manga_id", handleGetManga(services.Library))
		group.GET("/:manga_id/chapters", handleMangaChapters(services.Library))

		group.POST("", requireAuth, handleCreateManga(services.Library))
		group.PUT("/:manga_id", requireAuth, handleUpdateManga(services.Library))
		group.DELETE("/:manga_id", requireAuth, handleDeleteManga(services.Library))
		group.PUT("/:manga_id/cover", requireAuth, handleSetCover(services.Library))
	}
}

func mangaID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("manga_id"))
	if err != nil {
		respondError(c, types.NotFound("Manga not found"))
		return uuid.Nil, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

func handleSearchManga(libraryService *library.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		results, total, err := libraryService.SearchManga(c.Request.Context(), c.Query("title"), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		respondPage(c, results, limit, offset, total)
	}
}

func handleGetManga(libraryService *library.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := mangaID(c)
		if !ok {
			return
		}

		manga, err := libraryService.GetManga(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, manga)
	}
}

func handleMangaChapters(libraryService *library.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := mangaID(c)
		if !ok {
			return
		}

		chapters, err := libraryService.MangaChapters(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, chapters)
	}
}

func handleCreateManga(libraryService *library.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var draft types.MangaDraft
		if err := c.ShouldBindJSON(&draft); err != nil {
			respondError(c, types.BadInput("Invalid request format"))
			return
		}

		manga, err := libraryService.CreateManga(c.Request.Context(), middleware.CurrentUser(c), &draft)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusCreated, manga)
	}
}

func handleUpdateManga(libraryService *library.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := mangaID(c)
		if !ok {
			return
		}

		var draft types.MangaDraft
		if err := c.ShouldBindJSON(&draft); err != nil {
			respondError(c, types.BadInput("Invalid request format"))
			return
		}

		manga, err := libraryService.UpdateManga(c.Request.Context(), middleware.CurrentUser(c), id, &draft)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, manga)
	}
}

func handleDeleteManga(libraryService *library.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := mangaID(c)
		if !ok {
			return
		}

		if err := libraryService.DeleteManga(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "OK")
	}
}

func handleSetCover(libraryService *library.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := mangaID(c)
		if !ok {
			return
		}

		header, err := c.FormFile("payload")
		if err != nil {
			respondError(c, types.BadInput("A cover image needs to be provided"))
			return
		}
		file, err := header.Open()
		if err != nil {
			respondError(c, types.BadInput("A cover image needs to be provided"))
			return
		}
		defer file.Close()

		if err := libraryService.SetCover(c.Request.Context(), middleware.CurrentUser(c), id, file, header.Filename); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "OK")
	}
}
