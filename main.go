package main

import (
	"log"

	"cv-analyzer/cmd"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Commands load configuration and logging themselves
	cmd.Execute()
}
