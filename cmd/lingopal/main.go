package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lingopal/lingopal-client/internal/api"
	"github.com/lingopal/lingopal-client/internal/audio"
	"github.com/lingopal/lingopal-client/internal/config"
	"github.com/lingopal/lingopal-client/internal/gateway"
	"github.com/lingopal/lingopal-client/internal/repository/sqlite"
	"github.com/lingopal/lingopal-client/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Open the local state database
	db, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to open state database:", err)
	}
	defer db.Close()
	state := sqlite.NewStateRepository(db)

	// Backend client and services
	client := api.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout())
	svc := services.NewServices(cfg, client, state)

	// Microphone recorder
	device := audio.NewCommandDevice(cfg.Audio.Command, cfg.Audio.Args, cfg.Audio.MIMEType)
	recorder := audio.NewRecorder(device)
	defer recorder.Close()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "LingoPal Client",
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: getOrigins(cfg),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Setup routes
	gateway.SetupRoutes(app, svc, recorder, client)

	// Release the microphone on shutdown whatever state it is in
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		recorder.Close()
		app.Shutdown()
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	log.Printf("LingoPal client starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

func getOrigins(cfg *config.Config) string {
	if cfg.Gateway.CORSOrigins != "" {
		return cfg.Gateway.CORSOrigins
	}
	return "http://localhost:3000,http://localhost:5173"
}
