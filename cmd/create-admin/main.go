package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/inkdex/inkdex/internal/auth"
	"github.com/inkdex/inkdex/internal/common"
	"github.com/inkdex/inkdex/pkg/config"
)

func main() {
	username := flag.String("username", "", "Username for the admin account")
	flag.Parse()

	if *username == "" {
		fmt.Printf("Usage: %s -username <name>\n", os.Args[0])
		os.Exit(1)
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read password")
	}
	if len(password) < 8 {
		log.Fatal().Msg("password must be at least 8 characters")
	}

	cfg := config.LoadFromEnv()

	db, err := common.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	authService := auth.NewService(db, nil, nil, nil, &cfg.Auth)
	user, err := authService.CreateAdmin(context.Background(), *username, string(password))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create admin")
	}

	log.Info().Str("username", user.Username).Str("user_id", user.ID.String()).Msg("admin account created")
}
