package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"limitedtracker/internal/api/services"
	"limitedtracker/internal/config"
)

// Prints a signed operator token for POST /api/players/:robloxUserId/scan.
func main() {
	_ = godotenv.Load()

	operator := flag.String("operator", "", "Operator id (uuid), generated when empty")
	ttl := flag.Duration("ttl", services.DefaultTokenTTL, "Token lifetime")
	flag.Parse()

	cfg := config.Load()

	id := uuid.New()
	if *operator != "" {
		parsed, err := uuid.Parse(*operator)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid operator id: %v\n", err)
			os.Exit(2)
		}
		id = parsed
	}

	token, err := services.IssueOperatorToken(cfg.JWTKey, id, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
