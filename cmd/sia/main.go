package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Skufu/GoSia/internal/app"
	"github.com/Skufu/GoSia/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "sia",
	Short: "Health Assistant Sia",
	Long: `Sia answers health questions from a small set of built-in rules and falls
back to a language model for anything else. It is not a substitute for
professional medical advice.`,
	SilenceUsage: true,
}

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Answer a single message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAssistant()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.Responder.Respond(cmd.Context(), strings.Join(args, " ")))
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively, one message per line",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAssistant()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, a.Knowledge.Welcome)
		return chatLoop(cmd.InOrStdin(), out, func(message string) string {
			return a.Responder.Respond(cmd.Context(), message)
		})
	},
}

func newAssistant() (*app.Assistant, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := config.ConfigureLogging(cfg.LogLevel)
	return app.NewAssistant(cfg, logger)
}

// chatLoop answers each non-blank input line until EOF.
func chatLoop(in io.Reader, out io.Writer, respond func(string) string) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fmt.Fprintln(out, respond(line))
	}
}

func init() {
	rootCmd.AddCommand(askCmd, chatCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
