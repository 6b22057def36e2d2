package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/inkdex/inkdex/cmd/api-server/middleware"
	"github.com/inkdex/inkdex/internal/auth"
	"github.com/inkdex/inkdex/pkg/types"
)

func registerAuthRoutes(api *gin.RouterGroup, services *Services, requireAuth gin.HandlerFunc) {
	group := api.Group("/auth")
	{
		group.POST("/register", handleRegister(services.Auth))
		group.POST("/login", handleLogin(services.Auth))
		group.GET("/me", requireAuth, handleMe())
	}
}

func registerUserRoutes(api *gin.RouterGroup, services *Services, requireAuth gin.HandlerFunc) {
	group := api.Group("/users")
	group.Use(requireAuth)
	{
		group.GET("", handleListUsers(services.Auth))
		group.GET("/:user_id", handleGetUser(services.Auth))
		group.PUT("/:user_id", handleUpdateUser(services.Auth))
		group.DELETE("/:user_id", handleDeleteUser(services.Auth))
		group.PUT("/:user_id/avatar", handleSetAvatar(services.Auth))
	}
}

func userID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		respondError(c, types.NotFound("User not found"))
		return uuid.Nil, false
	}
	return id, true
}

func handleRegister(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, types.BadInput("Invalid request format"))
			return
		}

		user, err := authService.Register(c.Request.Context(), middleware.CurrentUser(c), &req, c.ClientIP())
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusCreated, user)
	}
}

func handleLogin(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, types.BadInput("Invalid request format"))
			return
		}

		token, err := authService.Login(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, token)
	}
}

func handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		respondData(c, http.StatusOK, middleware.CurrentUser(c))
	}
}

func handleListUsers(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		users, total, err := authService.ListUsers(c.Request.Context(), middleware.CurrentUser(c), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		respondPage(c, users, limit, offset, total)
	}
}

func handleGetUser(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userID(c)
		if !ok {
			return
		}

		user, err := authService.GetUser(c.Request.Context(), middleware.CurrentUser(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, user)
	}
}

func handleUpdateUser(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userID(c)
		if !ok {
			return
		}

		var req types.UpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, types.BadInput("Invalid request format"))
			return
		}

		user, err := authService.UpdateUser(c.Request.Context(), middleware.CurrentUser(c), id, &req)
		if err != nil {
			respondError(c, err)
			return
		}
		respondData(c, http.StatusOK, user)
	}
}

func handleSetAvatar(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userID(c)
		if !ok {
			return
		}

		header, err := c.FormFile("payload")
		if err != nil {
			respondError(c, types.BadInput("An avatar image needs to be provided"))
			return
		}
		file, err := header.Open()
		if err != nil {
			respondError(c, types.BadInput("An avatar image needs to be provided"))
			return
		}
		defer file.Close()

		if err := authService.SetAvatar(c.Request.Context(), middleware.CurrentUser(c), id, file, header.Filename); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "OK")
	}
}

func handleDeleteUser(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userID(c)
		if !ok {
			return
		}

		if err := authService.DeleteUser(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
			respondError(c, err)
			return
		}
		respondMessage(c, "OK")
	}
}
