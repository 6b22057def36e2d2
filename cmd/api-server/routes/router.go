// Package routes wires the HTTP surface of the API server.
package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/inkdex/inkdex/cmd/api-server/middleware"
	"github.com/inkdex/inkdex/internal/auth"
	"github.com/inkdex/inkdex/internal/library"
	"github.com/inkdex/inkdex/internal/upload"
	"github.com/inkdex/inkdex/pkg/config"
	"github.com/inkdex/inkdex/pkg/types"
)

// Services bundles the backend services the routes dispatch to
type Services struct {
	Auth    *auth.Service
	Library *library.Service
	Upload  *upload.Service
}

// SetupRouter builds the gin engine with all API routes registered
func SetupRouter(cfg *config.Config, services *Services) *gin.Engine {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(cfg.Server.CORSOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC(),
		})
	})

	api := router.Group("/api/v1")
	requireAuth := middleware.RequireAuth(services.Auth)

	registerAuthRoutes(api, services, requireAuth)
	registerUserRoutes(api, services, requireAuth)
	registerMangaRoutes(api, services, requireAuth)
	registerChapterRoutes(api, services, requireAuth)
	registerSettingsRoutes(api, services, requireAuth)
	registerUploadRoutes(api, services, requireAuth)

	return router
}

func corsMiddleware(origins string) gin.HandlerFunc {
	if origins == "" {
		origins = "*"
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origins)
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Origin, Cache-Control")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// respondError maps domain error kinds to HTTP statuses. Anything that
// isn't a domain error is an internal failure and its detail stays out
// of the response.
func respondError(c *gin.Context, err error) {
	status := types.ErrorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, types.APIResponse{Success: false, Error: "Internal server error"})
		return
	}
	c.JSON(status, types.APIResponse{Success: false, Error: err.Error()})
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, types.APIResponse{Success: true, Data: data})
}

func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, types.APIResponse{Success: true, Message: message})
}

func respondPage(c *gin.Context, data interface{}, limit, offset int, total int64) {
	c.JSON(http.StatusOK, types.PaginatedResponse{
		APIResponse: types.APIResponse{Success: true, Data: data},
		Pagination:  &types.PaginationInfo{Limit: limit, Offset: offset, Total: total},
	})
}
