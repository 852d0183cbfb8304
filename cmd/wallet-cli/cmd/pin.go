package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "PIN 解锁",
}

var pinSetCmd = &cobra.Command{
	Use:   "set",
	Short: "设置 PIN (需要钱包口令)",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFlag(cmd)
		if err != nil {
			return err
		}
		pin, err := readSecret("请输入新 PIN: ")
		if err != nil {
			return err
		}
		confirm, err := readSecret("请再次输入 PIN: ")
		if err != nil {
			return err
		}
		if pin != confirm {
			return errors.New("两次输入的 PIN 不一致")
		}
		if err := application.Vault.SetPin(cmd.Context(), pin, password); err != nil {
			return err
		}
		fmt.Println("✅ PIN 已设置")
		return nil
	},
}

var pinCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "校验 PIN",
	RunE: func(cmd *cobra.Command, args []string) error {
		pin, err := readSecret("请输入 PIN: ")
		if err != nil {
			return err
		}
		if err := application.Vault.VerifyPin(cmd.Context(), pin); err != nil {
			return err
		}
		fmt.Println("✅ PIN 正确")
		return nil
	},
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "设置或修改钱包口令",
	RunE: func(cmd *cobra.Command, args []string) error {
		old, _ := cmd.Flags().GetString("old")
		next, err := readSecret("请输入新口令: ")
		if err != nil {
			return err
		}
		pinReset, err := application.Vault.SetPassword(cmd.Context(), old, next)
		if err != nil {
			return err
		}
		fmt.Println("✅ 口令已更新")
		if pinReset {
			fmt.Println("⚠️  PIN 已失效，请重新执行 pin set")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pinCmd, passwordCmd)
	pinCmd.AddCommand(pinSetCmd, pinCheckCmd)
	pinSetCmd.Flags().StringP("password", "p", "", "钱包口令 (留空则交互输入)")
	passwordCmd.Flags().String("old", "", "旧口令 (首次设置可留空)")
}
