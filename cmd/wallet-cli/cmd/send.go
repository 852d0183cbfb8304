package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"wallet-custody/internal/hardware"
	"wallet-custody/internal/txn"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "签名并广播转账",
	Long:  `默认使用本地私钥签名 (开启双重加密时需要口令)；指定 --hardware 时使用硬件设备签名。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := parseTransferFlags(cmd)
		if err != nil {
			return err
		}
		if t.amount == nil {
			return errors.New("--amount 不能为空")
		}
		ctx := cmd.Context()

		q, err := application.Dispatcher.EstimateFees(ctx, t.estimateRequest())
		if err != nil {
			return err
		}
		printQuote(t.cfg, q)

		req := &txn.SignRequest{
			Chain: t.cfg.ID, From: t.from, To: t.to, Token: t.token, Amount: t.amount,
			FeeQuote: q,
		}
		if useHW, _ := cmd.Flags().GetBool("hardware"); useHW {
			transport, _ := cmd.Flags().GetString("transport")
			index, _ := cmd.Flags().GetInt("device-index")
			req.Method.Hardware = &txn.HardwareSigner{DeviceIndex: index, Transport: hardware.Kind(transport)}
			fmt.Println("请在设备上确认交易...")
		} else {
			password, _ := cmd.Flags().GetString("password")
			enabled, err := application.Vault.DoubleEncryptionEnabled(ctx)
			if err != nil {
				return err
			}
			if enabled && password == "" {
				if password, err = readSecret("请输入钱包口令以确认签名: "); err != nil {
					return err
				}
			}
			req.Method.Software = &txn.SoftwareSigner{Password: password}
		}

		res, err := application.Dispatcher.Send(ctx, req)
		if err != nil {
			if res != nil {
				fmt.Printf("交易已广播但未能记录: %s\n", res.Hash)
			}
			return err
		}
		fmt.Printf("\n✅ 发送成功!\nTxHash: %s\n", res.Hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	addTransferFlags(sendCmd)
	sendCmd.Flags().StringP("password", "p", "", "钱包口令 (留空则交互输入)")
	sendCmd.Flags().Bool("hardware", false, "使用硬件设备签名")
	sendCmd.Flags().String("transport", string(hardware.USB), "硬件传输方式 (usb, wireless)")
	sendCmd.Flags().Int("device-index", 0, "硬件设备上的账户序号")
}
