package main

import (
	"context"
	"time"

	"tourhub/internal/authz"
	bookingshandler "tourhub/internal/bookings/handler"
	bookingsrepo "tourhub/internal/bookings/repository"
	bookingsservice "tourhub/internal/bookings/service"
	bookingsvalidator "tourhub/internal/bookings/validator"
	chathandler "tourhub/internal/chat/handler"
	chatrepo "tourhub/internal/chat/repository"
	chatservice "tourhub/internal/chat/service"
	reviewshandler "tourhub/internal/reviews/handler"
	reviewsrepo "tourhub/internal/reviews/repository"
	reviewsservice "tourhub/internal/reviews/service"
	reviewsvalidator "tourhub/internal/reviews/validator"
	tourshandler "tourhub/internal/tours/handler"
	toursrepo "tourhub/internal/tours/repository"
	toursservice "tourhub/internal/tours/service"
	toursvalidator "tourhub/internal/tours/validator"
	usershandler "tourhub/internal/users/handler"
	usersrepo "tourhub/internal/users/repository"
	usersservice "tourhub/internal/users/service"
	usersvalidator "tourhub/internal/users/validator"
	wishlisthandler "tourhub/internal/wishlist/handler"
	wishlistrepo "tourhub/internal/wishlist/repository"
	wishlistservice "tourhub/internal/wishlist/service"
	"tourhub/pkg/app"
	"tourhub/pkg/auth"
	"tourhub/pkg/cache"
	"tourhub/pkg/config"
	"tourhub/pkg/contracts"
	"tourhub/pkg/events"
	"tourhub/pkg/kafka"
)

const (
	ServiceName = "api"

	cacheTTL = 5 * time.Minute
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting TourHub API service")

	publisher, closePublisher := initPublisher(cfg)

	tokens := auth.NewManager(
		cfg.JWTSecret,
		cfg.JWTTTL,
		auth.NewRedisRevocationStore(cfg.Client.Redis),
	)
	tagCache := cache.NewTagCache(cfg.Client.Redis, cfg.Log, cacheTTL)

	hubCtx, stopHub := context.WithCancel(context.Background())
	handlers, chatHandler, hub := initHandlers(cfg, tokens, tagCache, publisher)
	go hub.Run(hubCtx)

	serverApp := app.NewApplication(cfg)
	serverApp.SetSocket(chathandler.SocketPath, chatHandler.Socket())
	serverApp.SetApp(handlers...)
	serverApp.OnShutdown(stopHub)
	serverApp.OnShutdown(closePublisher)
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

func initPublisher(cfg *config.Config) (events.Publisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		cfg.Log.Info("Kafka brokers not configured, event publishing disabled")
		return events.NewNoopPublisher(), func() {}
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	cfg.Log.Info("Kafka producer initialized",
		"brokers", cfg.KafkaBrokers,
		"topic", cfg.KafkaTopic,
	)
	return events.NewKafkaPublisher(producer, ServiceName, cfg.Log), func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	}
}

func initHandlers(
	cfg *config.Config,
	tokens *auth.Manager,
	tagCache *cache.TagCache,
	publisher events.Publisher,
) ([]contracts.Handler, *chathandler.ChatHandler, *chatservice.Hub) {
	userRepo := usersrepo.NewMongoUserRepository(cfg)
	tourRepo := toursrepo.NewMongoTourRepository(cfg)
	bookingRepo := bookingsrepo.NewMongoBookingRepository(cfg)
	reviewRepo := reviewsrepo.NewMongoReviewRepository(cfg)
	wishlistRepo := wishlistrepo.NewMongoWishlistRepository(cfg)
	messageRepo := chatrepo.NewMongoMessageRepository(cfg)

	userService := usersservice.NewUserService(
		userRepo,
		usersvalidator.NewUserValidator(cfg.Log),
		tokens,
		cfg,
	)
	tourService := toursservice.NewTourService(
		tourRepo,
		toursvalidator.NewTourValidator(cfg.Log),
		tagCache,
		cfg,
	)
	bookingService := bookingsservice.NewBookingService(
		bookingRepo,
		tourRepo,
		bookingsvalidator.NewBookingValidator(cfg.Log),
		publisher,
		cfg,
	)
	reviewService := reviewsservice.NewReviewService(
		reviewRepo,
		bookingRepo,
		tourRepo,
		reviewsvalidator.NewReviewValidator(cfg.Log),
		publisher,
		cfg,
	)
	wishlistService := wishlistservice.NewWishlistService(wishlistRepo, tourRepo, cfg)
	hub := chatservice.NewHub(messageRepo, cfg)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)

	chatHandler := chathandler.NewChatHandler(hub, tokens, cfg)
	handlers := []contracts.Handler{
		usershandler.NewUserHandler(userService, tokens, cfg),
		authz.NewNavigationHandler(tokens, cfg.Log),
		tourshandler.NewTourHandler(tourService, tokens, cfg),
		bookingshandler.NewBookingHandler(bookingService, tokens, cfg),
		reviewshandler.NewReviewHandler(reviewService, tokens, cfg),
		wishlisthandler.NewWishlistHandler(wishlistService, tokens, cfg),
		chatHandler,
	}
	return handlers, chatHandler, hub
}
