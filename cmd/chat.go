package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var chatSystemPrompt string

// chatCmd runs an interactive multi-turn conversation in the terminal.
// History is bounded by chat.max_turns; typing /clear resets it and /quit
// exits.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		session := appInstance.NewChatSession()
		session.InitializeSystem(chatSystemPrompt)

		userColor := color.New(color.FgCyan, color.Bold)
		assistantColor := color.New(color.FgGreen)
		faint := color.New(color.Faint)

		fmt.Println("Chat session started. /clear resets history, /quit exits.")
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for {
			userColor.Print("you> ")
			if !scanner.Scan() {
				break
			}
			input := strings.TrimSpace(scanner.Text())
			switch input {
			case "":
				continue
			case "/quit", "/exit":
				return nil
			case "/clear":
				session.ClearHistory()
				faint.Println("History cleared.")
				continue
			}

			env, err := session.Chat(cmd.Context(), input)
			if err != nil {
				faint.Printf("Rejected: %v\n", err)
				continue
			}
			if !env.OK {
				faint.Printf("Failed: %s\n", env.Error)
				continue
			}
			assistantColor.Println(env.Text)
			faint.Printf("(~%d tokens in history, $%s this turn)\n", session.EstimatedTokens(), env.Cost)
		}
		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSystemPrompt, "system", "", "System prompt seeding the conversation")
	rootCmd.AddCommand(chatCmd)
}
