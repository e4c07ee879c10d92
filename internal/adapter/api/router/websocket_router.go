package router

import (
	"github.com/labstack/echo/v4"

	"agrolink/internal/adapter/api/handler"
)

// SetupWebSocketRouter sets up the realtime push endpoint. Auth happens
// inside the handler via a token query param, not middleware.
func SetupWebSocketRouter(e *echo.Echo) {
	wsHandler := handler.GetWebSocketHandler()
	e.GET("/ws/chat", wsHandler.HandleWebSocket)
}
