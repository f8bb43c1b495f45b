package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"localchat/internal/bootstrap"
	"localchat/internal/transport/http/response"
)

type HealthHandler struct {
	app *bootstrap.App
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqliteStatus := h.checkSQLite(ctx)
	ollamaStatus := h.checkOllama(ctx)
	deps := gin.H{
		"sqlite": sqliteStatus,
		"ollama": ollamaStatus,
	}
	allOK := sqliteStatus.OK && ollamaStatus.OK

	if h.app.Redis != nil {
		status := h.checkRedis(ctx)
		deps["redis"] = status
		allOK = allOK && status.OK
	}
	if h.app.MQConn != nil {
		status := h.checkRabbitMQ()
		deps["rabbitmq"] = status
		allOK = allOK && status.OK
	}

	statusCode := http.StatusOK
	code := response.CodeOK
	message := "ok"
	if !allOK {
		statusCode = http.StatusServiceUnavailable
		code = response.CodeUnavailable
		message = "degraded"
	}

	c.JSON(statusCode, response.APIResponse{
		Code:    code,
		Message: message,
		Data: gin.H{
			"app":          h.app.Config.App.Name,
			"env":          h.app.Config.App.Env,
			"uptime_sec":   int(time.Since(h.app.StartedAt).Seconds()),
			"dependencies": deps,
		},
	})
}

func (h *HealthHandler) checkSQLite(ctx context.Context) dependencyStatus {
	sqlDB, err := h.app.DB.DB()
	if err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

// checkOllama fails on transport errors only; a reachable server with
// no models pulled yet is healthy and just annotated.
func (h *HealthHandler) checkOllama(ctx context.Context) dependencyStatus {
	if err := h.app.LLM.Ping(ctx); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	if models := h.app.LLM.ListModels(ctx); len(models) == 0 {
		return dependencyStatus{OK: true, Message: "no models pulled yet"}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRedis(ctx context.Context) dependencyStatus {
	if err := h.app.Redis.Ping(ctx).Err(); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRabbitMQ() dependencyStatus {
	if h.app.MQConn == nil || h.app.MQConn.IsClosed() {
		return dependencyStatus{OK: false, Message: "connection closed"}
	}
	return dependencyStatus{OK: true}
}
