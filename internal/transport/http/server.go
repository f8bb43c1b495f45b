package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	appsvc "localchat/internal/app"
	"localchat/internal/bootstrap"
	"localchat/internal/repository"
	"localchat/internal/transport/http/handler"
	"localchat/internal/transport/http/middleware"
	"localchat/internal/transport/http/response"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Logger), gin.Recovery())

	messageRepo := repository.NewMessageRepository(app.DB)
	chatService := appsvc.NewChatService(appsvc.ChatServiceDeps{
		Repo:          messageRepo,
		Cache:         app.TranscriptCache,
		Backend:       app.LLM,
		Puller:        app.LLM,
		Retriever:     app.VectorStore,
		Transcriber:   transcriberOrNil(app),
		PullRunner:    app.PullRunner,
		DefaultModel:  app.Config.Ollama.ChatModel,
		MemoryLength:  app.Config.Chat.MemoryLength,
		RetrievedDocs: app.Config.Chat.RetrievedDocuments,
		Logger:        app.Logger,
	})
	ingestService := appsvc.NewIngestService(
		app.VectorStore,
		app.Config.Splitter.ChunkSize,
		app.Config.Splitter.ChunkOverlap,
		app.Config.Splitter.Separators,
		app.Logger,
	)

	healthHandler := handler.NewHealthHandler(app)
	sessionHandler := handler.NewSessionHandler(chatService)
	chatHandler := handler.NewChatHandler(chatService)
	documentHandler := handler.NewDocumentHandler(ingestService)
	modelHandler := handler.NewModelHandler(chatService)

	router.StaticFile("/", "web/index.html")
	router.NoRoute(func(c *gin.Context) {
		response.Error(c, nethttp.StatusNotFound, response.CodeNotFound, "resource not found")
	})
	router.GET("/healthz", healthHandler.Check)

	v1 := router.Group("/api/v1")
	v1.GET("/sessions", sessionHandler.List)
	v1.DELETE("/sessions/:id", sessionHandler.Delete)
	v1.GET("/sessions/:id/messages", sessionHandler.Messages)
	v1.POST("/chat", chatHandler.Send)
	v1.POST("/documents", documentHandler.Upload)
	v1.GET("/models", modelHandler.List)
	v1.POST("/models/pull", modelHandler.Pull)

	return router
}

// transcriberOrNil avoids storing a typed-nil *ai.Transcriber in the
// service's interface field.
func transcriberOrNil(app *bootstrap.App) appsvc.Transcriber {
	if app.Transcriber == nil {
		return nil
	}
	return app.Transcriber
}
