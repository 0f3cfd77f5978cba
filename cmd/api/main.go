package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskmaster/relay/cmd/api/commands"
)

// @title TaskRelay API
// @version 1.0
// @description Task mutation gateway that turns saves into scheduled side effects

// @contact.name TaskRelay Support
// @contact.url https://github.com/taskmaster/relay

// @license.name MIT
// @license.url https://github.com/taskmaster/relay/blob/main/LICENSE

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskrelay",
		Short: "TaskRelay API Server",
		Long:  `TaskRelay keeps every consequence of a task change in step with it: reminders, recurrences, calendar events, geofences, timers and remote sync all follow from one save.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewSyncCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
