package main

import (
	"context"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"agrolink/internal/adapter/api"
	"agrolink/internal/adapter/api/handler"
	apimiddleware "agrolink/internal/adapter/api/middleware"
	"agrolink/internal/adapter/api/router"
	"agrolink/internal/adapter/repository"
	"agrolink/internal/infrastructure/eventbus"
	"agrolink/internal/infrastructure/firebase"
	"agrolink/internal/infrastructure/presence"
	"agrolink/internal/infrastructure/websocket"
	"agrolink/internal/usecase"
	"agrolink/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opts []option.ClientOption

	// Service account JSON in the environment wins, file path is the
	// local development fallback. With neither, ADC is used.
	if serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); serviceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
	} else if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", cfg.CredentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProjectID, opts...)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	chatRepo := repository.NewFirestoreChatRepository(firestoreClient)
	userRepo := repository.NewFirestoreUserRepository(firestoreClient)
	listingRepo := repository.NewFirestoreListingRepository(firestoreClient)

	firebaseAuthClient := firebase.NewFirebaseAuthClient(authClient)

	bus := eventbus.New()
	defer bus.Close()

	presenceStore := presence.NewStore(redisClient)

	wsManager := websocket.NewManager(presenceStore)
	wsManager.Start(ctx)

	gateway := websocket.NewGateway(wsManager, bus)
	if err := gateway.Start(ctx); err != nil {
		log.Fatalf("Failed to start push gateway: %v", err)
	}

	chatUseCase := usecase.NewChatUseCase(chatRepo, userRepo, listingRepo, bus, presenceStore)

	authMiddleware := apimiddleware.NewAuthMiddleware(authClient)

	handler.Setup(chatUseCase, wsManager, authMiddleware, firebaseAuthClient)

	e := echo.New()

	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.Validator = api.NewValidator()

	router.Setup(e, authMiddleware)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
