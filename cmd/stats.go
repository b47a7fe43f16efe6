package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/wda-labs/newswatch/internal/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print article and failure counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("report"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.Stats(ctx)
		if err != nil {
			return err
		}
		failures, err := st.FailureCount(ctx)
		if err != nil {
			return err
		}

		out := struct {
			Articles *model.Stats `json:"articles"`
			Failures int          `json:"failures"`
		}{Articles: stats, Failures: failures}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
