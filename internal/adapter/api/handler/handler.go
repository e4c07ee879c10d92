package handler

import (
	"agrolink/internal/adapter/api/middleware"
	"agrolink/internal/infrastructure/firebase"
	ws "agrolink/internal/infrastructure/websocket"
	"agrolink/internal/usecase"
)

var (
	chatHandler      *ChatHandler
	webSocketHandler *WebSocketHandler
	healthHandler    *HealthHandler
)

func Setup(
	chatUseCase *usecase.ChatUseCase,
	wsManager *ws.Manager,
	authMiddleware *middleware.AuthMiddleware,
	firebaseAuth *firebase.FirebaseAuthClient,
) {
	chatHandler = NewChatHandler(chatUseCase)
	webSocketHandler = NewWebSocketHandler(wsManager, authMiddleware)
	healthHandler = NewHealthHandler(firebaseAuth)
}

func GetChatHandler() *ChatHandler {
	return chatHandler
}

func GetWebSocketHandler() *WebSocketHandler {
	return webSocketHandler
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}
