package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"wallet-custody/internal/hardware"
)

var hwCmd = &cobra.Command{
	Use:   "hw",
	Short: "硬件设备",
}

var hwConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "连接硬件设备并读取地址",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("chain")
		id, err := application.Registry.Parse(name)
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		index, _ := cmd.Flags().GetInt("device-index")

		addr, err := application.Dispatcher.ConnectHardwareDevice(cmd.Context(), id, hardware.Kind(transport), index)
		if err != nil {
			return err
		}
		if addr == "" {
			fmt.Println("未发现设备")
			return nil
		}
		fmt.Printf("%s 账户 #%d: %s\n", id, index, addr)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hwCmd)
	hwCmd.AddCommand(hwConnectCmd)
	hwConnectCmd.Flags().StringP("chain", "c", "ETH", "链")
	hwConnectCmd.Flags().String("transport", string(hardware.USB), "传输方式 (usb, wireless)")
	hwConnectCmd.Flags().Int("device-index", 0, "账户序号")
}
