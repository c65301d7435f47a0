package main

import (
	"log"

	"faceemotion/internal/app"
)

func main() {
	application, err := app.NewApp()
	if err != nil {
		log.Fatalf("Failed to initialise server: %v", err)
	}

	err = application.Run()
	application.Close()
	if err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
