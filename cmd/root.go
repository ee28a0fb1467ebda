package cmd

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/polaris-ai/polaris-cli/internal/app"
)

var rootCmd = &cobra.Command{
	Use:   "polaris",
	Short: "Terminal client for the Polaris AI assistant",
	Long:  `Polaris is a terminal client for the Polaris AI multi-agent assistant: chat with the coordinator, approve or cancel side-effecting actions, and browse saved conversations.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Default behavior: run the chat application
		application, err := app.NewApplication()
		if err != nil {
			log.Fatalf("Failed to create application: %v", err)
		}
		defer application.Stop()

		if err := application.Start(); err != nil {
			log.Fatalf("Application error: %v", err)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution error: %v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(sessionsCmd)
}
