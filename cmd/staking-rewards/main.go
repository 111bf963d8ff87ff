package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/naffles/nft-staking-rewards/cmd/staking-rewards/cli"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("failed to load .env file")
	}
}

func main() {
	// loggers pulled from a context without one fall back to the global logger
	zerolog.DefaultContextLogger = &log.Logger

	// setup cli commands and flags, the selected command runs from here
	if err := cli.Setup(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}
