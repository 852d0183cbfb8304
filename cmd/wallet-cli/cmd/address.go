package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var addressCmd = &cobra.Command{
	Use:   "address <chain> <address>",
	Short: "校验地址格式",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := application.Registry.Parse(args[0])
		if err != nil {
			return err
		}
		if application.Dispatcher.IsValidAddress(id, args[1]) {
			fmt.Printf("✅ %s 是有效的 %s 地址\n", args[1], id)
			return nil
		}
		return fmt.Errorf("%s 不是有效的 %s 地址", args[1], id)
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
}
