// Package main provides hub cache operator commands.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	entrypoint "github.com/subdogs/hub/internal/platform/cmd"
	"github.com/subdogs/hub/internal/platform/config"
	"github.com/subdogs/hub/internal/tools/cacheadmin"
)

func main() {
	log.SetPrefix(entrypoint.LogPrefix(entrypoint.ServiceHubcacheAdmin))
	cfg, err := cacheadmin.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := cacheadmin.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("Error: %v", err)
	}
}
