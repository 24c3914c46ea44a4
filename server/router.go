package server

import (
	"github.com/gin-gonic/gin"

	"github.com/HyxiaoGe/prompthub/metrics"
)

func initRouter(g *gin.Engine, s *Server) {
	installMiddleware(g, s)
	installController(g, s)
}

func installMiddleware(g *gin.Engine, s *Server) {
	g.Use(gin.Recovery())
	g.Use(cors(s.cfg.CORSOrigins))
	g.Use(requestLogger())
}

func installController(g *gin.Engine, s *Server) {
	// Open endpoints.
	g.GET("/healthz", handleHealth)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Handlers.
	projectHandler := newProjectHandler(s.deps.Projects, s.cfg.DefaultPageSize)
	promptHandler := newPromptHandler(s.deps.Prompts, s.deps.Versions, s.deps.Refs, s.cfg.DefaultPageSize)
	sceneHandler := newSceneHandler(s.deps.Scenes, s.cfg.DefaultPageSize)
	refHandler := newRefHandler(s.deps.Refs)
	sharedHandler := newSharedHandler(s.deps.Prompts, s.cfg.DefaultPageSize)
	aiHandler := newAIHandler(s.deps.AI)

	// --- authenticated API group ---
	api := g.Group(s.cfg.APIPrefix)
	api.Use(bearerAuth(s.deps.Store))
	{
		// Project CRUD.
		api.POST("/projects", projectHandler.Create)
		api.GET("/projects", projectHandler.List)
		api.GET("/projects/:id", projectHandler.Get)
		api.PUT("/projects/:id", projectHandler.Update)
		api.DELETE("/projects/:id", projectHandler.Delete)

		// Prompt CRUD, rendering, sharing and versions.
		api.POST("/prompts", promptHandler.Create)
		api.GET("/prompts", promptHandler.List)
		api.GET("/prompts/:id", promptHandler.Get)
		api.PUT("/prompts/:id", promptHandler.Update)
		api.DELETE("/prompts/:id", promptHandler.Delete)
		api.POST("/prompts/:id/render", promptHandler.Render)
		api.POST("/prompts/:id/share", promptHandler.Share)
		api.POST("/prompts/:id/unshare", promptHandler.Unshare)
		api.POST("/prompts/:id/publish", promptHandler.Publish)
		api.GET("/prompts/:id/versions", promptHandler.ListVersions)
		api.GET("/prompts/:id/versions/:version", promptHandler.GetVersion)
		api.GET("/prompts/:id/refs", promptHandler.ListRefs)
		api.GET("/prompts/:id/impact", promptHandler.Impact)

		// References.
		api.POST("/refs", refHandler.Create)
		api.DELETE("/refs/:id", refHandler.Delete)

		// Shared marketplace.
		api.GET("/shared/prompts", sharedHandler.List)
		api.POST("/shared/prompts/:id/fork", sharedHandler.Fork)

		// Scenes and resolution.
		api.POST("/scenes", sceneHandler.Create)
		api.GET("/scenes", sceneHandler.List)
		api.GET("/scenes/:id", sceneHandler.Get)
		api.PUT("/scenes/:id", sceneHandler.Update)
		api.DELETE("/scenes/:id", sceneHandler.Delete)
		api.POST("/scenes/:id/resolve", sceneHandler.Resolve)
		api.GET("/scenes/:id/dependencies", sceneHandler.Dependencies)

		// AI tooling.
		api.POST("/ai/generate", aiHandler.Generate)
		api.POST("/ai/enhance", aiHandler.Enhance)
		api.POST("/ai/variants", aiHandler.Variants)
		api.POST("/ai/evaluate", aiHandler.Evaluate)
		api.POST("/ai/evaluate-batch", aiHandler.EvaluateBatch)
		api.POST("/ai/lint", aiHandler.Lint)
	}
}

func handleHealth(c *gin.Context) {
	writeData(c, gin.H{"status": "healthy"})
}
