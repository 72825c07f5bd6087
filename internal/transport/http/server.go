package http

import (
	"github.com/gin-gonic/gin"

	"gopherblog/internal/app"
	"gopherblog/internal/bootstrap"
	"gopherblog/internal/config"
	"gopherblog/internal/logging"
	"gopherblog/internal/transport/http/handler"
	"gopherblog/internal/transport/http/middleware"
)

func NewRouter(a *bootstrap.App) *gin.Engine {
	gin.SetMode(a.Config.App.GinMode)
	health := handler.NewHealthHandler(a.Config.App.Name, a.Config.App.Env, a.StartedAt, a.HealthDependencies()...)
	return NewEngine(a.Config, a.Services, health, a.Logger)
}

// NewEngine wires the routes onto a fresh gin engine.
func NewEngine(cfg *config.Config, svc app.Services, health *handler.HealthHandler, logger logging.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.ClientIP())
	router.MaxMultipartMemory = int64(cfg.Storage.MaxAvatarBytes) + 1<<20

	cookie := middleware.Cookie{
		Name:   cfg.Session.CookieName,
		Secret: cfg.Session.Secret,
		Secure: cfg.Session.CookieSecure,
	}

	router.GET("/healthz", health.Check)
	if cfg.Storage.Backend == config.StorageBackendLocal {
		router.Static("/author_profile_pic", cfg.Storage.UploadDir)
	}

	authHandler := handler.NewAuthHandler(svc.Auth, svc.Sessions, cookie, logger)
	postHandler := handler.NewPostHandler(svc.Posts)
	profileHandler := handler.NewProfileHandler(svc.Profiles, svc.Posts, cfg.Storage.MaxAvatarBytes)

	requireAuth := middleware.RequireAuth()

	v1 := router.Group("/api/v1")
	v1.Use(middleware.LoadSession(cookie, svc.Sessions, svc.Auth, logger))

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", requireAuth, authHandler.Logout)
	authGroup.GET("/me", requireAuth, authHandler.Me)

	postGroup := v1.Group("/posts")
	postGroup.GET("", postHandler.List)
	postGroup.GET("/:id", postHandler.Get)
	postGroup.POST("", requireAuth, postHandler.Create)
	postGroup.PUT("/:id", requireAuth, postHandler.Update)
	postGroup.DELETE("/:id", requireAuth, postHandler.Delete)

	profileGroup := v1.Group("/profile")
	profileGroup.Use(requireAuth)
	profileGroup.GET("", profileHandler.Get)
	profileGroup.PUT("", profileHandler.Update)
	profileGroup.GET("/posts", profileHandler.Posts)

	return router
}
