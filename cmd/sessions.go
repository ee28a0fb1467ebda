package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/polaris-ai/polaris-cli/internal/api"
	"github.com/polaris-ai/polaris-cli/internal/app"
	"github.com/polaris-ai/polaris-cli/internal/auth"
	"github.com/polaris-ai/polaris-cli/internal/config"
	"github.com/polaris-ai/polaris-cli/internal/history"
	"github.com/polaris-ai/polaris-cli/internal/logging"
	"github.com/polaris-ai/polaris-cli/internal/models"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browse and manage saved conversations",
}

var listSessionsCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations grouped by recency",
	Run: func(cmd *cobra.Command, args []string) {
		client, logger := newHistoryClient()
		defer logger.Sync()

		groups, err := client.Grouped(context.Background(), time.Now())
		if err != nil {
			log.Fatalf("Failed to list sessions: %v", err)
		}

		printGroup("Today", groups.Today)
		printGroup("Yesterday", groups.Yesterday)
		printGroup("Previous 7 days", groups.LastWeek)
		printGroup("Previous 30 days", groups.LastMonth)
		printGroup("Older", groups.Older)
	},
}

var openSessionCmd = &cobra.Command{
	Use:   "open [session-id]",
	Short: "Resume a saved conversation in the chat app",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		application, err := app.NewApplication()
		if err != nil {
			log.Fatalf("Failed to create application: %v", err)
		}
		defer application.Stop()

		application.ResumeSession(args[0])

		if err := application.Start(); err != nil {
			log.Fatalf("Application error: %v", err)
		}
	},
}

var renameSessionCmd = &cobra.Command{
	Use:   "rename [session-id] [title]",
	Short: "Rename a conversation",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client, logger := newHistoryClient()
		defer logger.Sync()

		if err := client.Rename(context.Background(), args[0], args[1]); err != nil {
			log.Fatalf("Failed to rename session: %v", err)
		}
		fmt.Println("Renamed")
	},
}

var deleteSessionCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, logger := newHistoryClient()
		defer logger.Sync()

		if err := client.Delete(context.Background(), args[0]); err != nil {
			log.Fatalf("Failed to delete session: %v", err)
		}
		fmt.Println("Deleted")
	},
}

var clearSessionsCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all conversations",
	Run: func(cmd *cobra.Command, args []string) {
		confirm := promptui.Prompt{
			Label:     "Delete ALL conversations",
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			fmt.Println("Aborted")
			return
		}

		client, logger := newHistoryClient()
		defer logger.Sync()

		if err := client.ClearAll(context.Background()); err != nil {
			log.Fatalf("Failed to clear sessions: %v", err)
		}
		fmt.Println("All conversations deleted")
	},
}

func newHistoryClient() (*history.Client, *zap.Logger) {
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

	tokens := auth.NewStore(dir, cfg.GetBaseURL(), logger)
	apiClient := api.NewClient(cfg.GetBaseURL(), cfg.GetUserID(), tokens, logger)
	return history.NewClient(apiClient, logger), logger
}

func printGroup(label string, sessions []models.ChatSession) {
	if len(sessions) == 0 {
		return
	}
	fmt.Printf("%s:\n", label)
	for _, s := range sessions {
		fmt.Printf("  %s  %s  (%d messages, updated %s)\n",
			s.ID, s.Title, s.MessageCount, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Println()
}

func init() {
	sessionsCmd.AddCommand(listSessionsCmd)
	sessionsCmd.AddCommand(openSessionCmd)
	sessionsCmd.AddCommand(renameSessionCmd)
	sessionsCmd.AddCommand(deleteSessionCmd)
	sessionsCmd.AddCommand(clearSessionsCmd)
}
