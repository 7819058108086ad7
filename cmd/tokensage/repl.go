package main

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/avelnar/tokensage/internal/tokensage/engine"
)

var replUser string

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive conversation with the market assistant",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}

		fmt.Println("Ask about prices, grades, signals, sentiment, or history.")
		fmt.Println("Type \"exit\" to leave.")
		fmt.Println()

		for {
			prompt := promptui.Prompt{Label: "you"}
			text, err := prompt.Run()
			if err != nil {
				// Ctrl-C / Ctrl-D end the session.
				if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
					return nil
				}
				return fmt.Errorf("reading input: %w", err)
			}
			if text == "" {
				continue
			}
			if text == "exit" || text == "quit" {
				return nil
			}

			resp := a.engine.ProcessQuery(cmd.Context(), engine.Request{
				Text:    text,
				UserID:  replUser,
				Runtime: a.client,
			})
			fmt.Println(resp.NaturalLanguageResponse)
			fmt.Println()
		}
	},
}

func init() {
	replCmd.Flags().StringVar(&replUser, "user", "cli", "user ID for conversation memory")
	rootCmd.AddCommand(replCmd)
}
