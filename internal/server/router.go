package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jasonroberts79/cyberpunk-looter/internal/handlers"
)

type RouterConfig struct {
	KnowledgeHandler *handlers.KnowledgeHandler
	AllowOrigins     []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthz", handlers.HealthCheck)

	v1 := router.Group("/v1/knowledge")
	{
		v1.POST("/reindex", cfg.KnowledgeHandler.Reindex)
		v1.POST("/query", cfg.KnowledgeHandler.Query)
	}

	return router
}
