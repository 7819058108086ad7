package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/avelnar/tokensage/internal/tokensage/engine"
)

var (
	askUser    string
	askIntent  string
	askHistory bool
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single market question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}

		resp := a.engine.ProcessQuery(cmd.Context(), engine.Request{
			Text:    strings.Join(args, " "),
			UserID:  askUser,
			Runtime: a.client,
			Options: engine.Options{
				ForceIntent:    askIntent,
				IncludeHistory: askHistory,
			},
		})

		if askJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		fmt.Println(resp.NaturalLanguageResponse)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askUser, "user", "cli", "user ID for conversation memory")
	askCmd.Flags().StringVar(&askIntent, "intent", "", "bypass classification with this intent")
	askCmd.Flags().BoolVar(&askHistory, "history", false, "include recent queries in JSON output")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full response envelope as JSON")
	rootCmd.AddCommand(askCmd)
}
