package main

import (
	"log"

	_ "reminder-service/docs" // registers the OpenAPI description
	"reminder-service/internal/app"
)

// @title Reminder Service API
// @version 1.0
// @description Telegram webhook and read API of the workout reminder bot

// @BasePath /

func main() {
	// Create and initialize the application
	application, err := app.New()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Run the application
	if err := application.Run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
