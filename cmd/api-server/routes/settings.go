package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkdex/inkdex/cmd/api-server/middleware"
	"github.com/inkdex/inkdex/internal/library"
	"github.com/inkdex/inkdex/pkg/types"
)

func registerSettingsRoutes(api *gin.RouterGroup, services *Services, requireAuth gin.HandlerFunc) {
	group := api.Group("/settings")
	{
		group.GET("", handleGetSettings(services.Library))
		group.PUT("", requireAuth, handleUpdateSettings(services.Library))
	}
}

func handleGetSettings(libraryService *library.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, err := libraryService.GetSettings(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, settings)
	}
}

func handleUpdateSettings(libraryService *library.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var settings types.SiteSettings
		if err := c.ShouldBindJSON(&settings); err != nil {
			respondError(c, types.BadInput("Invalid request format"))
			return
		}

		if err := libraryService.UpdateSettings(c.Request.Context(), middleware.CurrentUser(c), &settings); err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, settings)
	}
}
