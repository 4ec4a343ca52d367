package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gwi.com/analyst-assistant/internal/history"
	"gwi.com/analyst-assistant/internal/store"
)

var (
	exportEmail string
	exportOut   string
)

var exportLogCmd = &cobra.Command{
	Use:   "export-log",
	Short: "Export the durable chat log of one account as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadTools()
		if err != nil {
			return err
		}
		defer logger.Sync()

		st, err := store.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.ChatLogs(cmd.Context(), exportEmail)
		if err != nil {
			return err
		}
		exchanges := make([]history.Exchange, 0, len(entries))
		for _, e := range entries {
			exchanges = append(exchanges, history.Exchange{Question: e.Question, Answer: e.Answer})
		}

		var out io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		if err := history.WriteCSV(out, exchanges); err != nil {
			return err
		}
		if exportOut != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d exchanges to %s\n", len(exchanges), exportOut)
		}
		return nil
	},
}

func init() {
	exportLogCmd.Flags().StringVar(&exportEmail, "email", "", "account whose chat log to export")
	exportLogCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write to this file instead of stdout")
	exportLogCmd.MarkFlagRequired("email")
}
