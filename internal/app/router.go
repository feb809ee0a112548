package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func wireRouter(cfg Config, handlerset Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", handlerset.Healthcheck.Healthcheck)

	api := router.Group("/api/v1")
	{
		sets := api.Group("/document-sets")
		{
			sets.POST("", handlerset.DocumentSet.Create)
			sets.GET("/:setId", handlerset.DocumentSet.Get)
			sets.POST("/:setId/documents", handlerset.DocumentSet.AddDocument)
			sets.GET("/:setId/members", handlerset.DocumentSet.ListMembers)
			sets.GET("/:setId/progress", handlerset.Progress.Stream)
		}
		api.GET("/projects/:projectId/document-sets", handlerset.DocumentSet.ListByProject)
		api.POST("/members/:memberId/retry", handlerset.DocumentSet.RetryMember)

		api.POST("/retrieval/search", handlerset.Retrieval.Search)

		reports := api.Group("/reports/:reportId/sections")
		{
			reports.POST("", handlerset.Report.QueueSection)
			reports.GET("/:sectionIndex", handlerset.Report.GetSection)
		}

		admin := api.Group("/admin/queues")
		{
			admin.GET("", handlerset.QueueAdmin.Stats)
			admin.POST("/:queue/pause", handlerset.QueueAdmin.Pause)
			admin.POST("/:queue/resume", handlerset.QueueAdmin.Resume)
			admin.POST("/:queue/drain", handlerset.QueueAdmin.Drain)
		}
	}
	return router
}
