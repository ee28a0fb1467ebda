package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/polaris-ai/polaris-cli/internal/auth"
	"github.com/polaris-ai/polaris-cli/internal/config"
	"github.com/polaris-ai/polaris-cli/internal/logging"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the Polaris backend",
	Long:  `Sign in with your Polaris account and store the token pair for the active profile's backend.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		dir, err := config.Dir()
		if err != nil {
			log.Fatalf("Failed to locate config directory: %v", err)
		}

		logger, err := logging.NewCLILogger(false)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logger.Sync()

		emailPrompt := promptui.Prompt{
			Label: "Email",
		}
		email, err := emailPrompt.Run()
		if err != nil {
			log.Fatalf("Prompt failed: %v", err)
		}

		passwordPrompt := promptui.Prompt{
			Label: "Password",
			Mask:  '*',
		}
		password, err := passwordPrompt.Run()
		if err != nil {
			log.Fatalf("Prompt failed: %v", err)
		}

		store := auth.NewStore(dir, cfg.GetBaseURL(), logger)
		if err := store.Login(context.Background(), email, password); err != nil {
			log.Fatalf("Login failed: %v", err)
		}

		fmt.Printf("Signed in to %s\n", cfg.GetBaseURL())
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	Run: func(cmd *cobra.Command, args []string) {
		dir, err := config.Dir()
		if err != nil {
			log.Fatalf("Failed to locate config directory: %v", err)
		}

		logger, err := logging.NewCLILogger(false)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logger.Sync()

		store := auth.NewStore(dir, "", logger)
		if err := store.Clear(); err != nil {
			log.Fatalf("Logout failed: %v", err)
		}
		fmt.Println("Signed out")
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
