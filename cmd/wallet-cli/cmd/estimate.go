package cmd

import (
	"github.com/spf13/cobra"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "预估转账费用",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTransferFlags(cmd)
		if err != nil {
			return err
		}
		q, err := application.Dispatcher.EstimateFees(cmd.Context(), t.estimateRequest())
		if err != nil {
			return err
		}
		printQuote(t.cfg, q)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(estimateCmd)
	addTransferFlags(estimateCmd)
}
