// apps/go-server/main.go
//
// Entry point for the Memory game binary.
//   memory serve   → HTTP game server (see internal/httpserver)
//   memory play    → terminal client against a local engine

package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory/apps/go-server/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("memory exited")
		os.Exit(1)
	}
}
