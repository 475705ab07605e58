package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskmaster/tracker/cmd/api/commands"
)

// @title Tracker API
// @version 1.0
// @description Personal task tracker and work-hours log with live updates

// @contact.name Tracker Support
// @contact.url https://github.com/taskmaster/tracker

// @license.name MIT
// @license.url https://github.com/taskmaster/tracker/blob/main/LICENSE

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the ID token.

func main() {
	rootCmd := &cobra.Command{
		Use:          "tracker",
		Short:        "Tracker API Server",
		Long:         `Tracker keeps per-day task lists and a log of worked hours, and streams every change to connected clients.`,
		SilenceUsage: true,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewSeedCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
