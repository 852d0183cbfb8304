package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"wallet-custody/pkg/bip39"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "私钥管理",
}

var keysEncryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "开启双重加密：用口令加密所有私钥",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFlag(cmd)
		if err != nil {
			return err
		}
		if err := application.Vault.EncryptAllKeys(cmd.Context(), password); err != nil {
			return err
		}
		fmt.Println("✅ 已开启双重加密")
		return nil
	},
}

var keysDecryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "关闭双重加密",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFlag(cmd)
		if err != nil {
			return err
		}
		if err := application.Vault.DecryptAllKeys(cmd.Context(), password); err != nil {
			return err
		}
		fmt.Println("✅ 已关闭双重加密")
		return nil
	},
}

var keysImportCmd = &cobra.Command{
	Use:   "import",
	Short: "从助记词导入各链账户 0 的私钥",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mnemonic, _ := cmd.Flags().GetString("mnemonic")
		generate, _ := cmd.Flags().GetBool("generate")
		if generate {
			m, err := bip39.GenerateMnemonic(256)
			if err != nil {
				return err
			}
			mnemonic = m
			fmt.Println("⚠️  请抄写并妥善保管以下助记词:")
			fmt.Println(mnemonic)
		}
		mnemonic, err := secretFlag(mnemonic, "请输入助记词: ")
		if err != nil {
			return err
		}

		var password string
		enabled, err := application.Vault.DoubleEncryptionEnabled(ctx)
		if err != nil {
			return err
		}
		if enabled {
			if password, err = passwordFlag(cmd); err != nil {
				return err
			}
		}

		addrs, err := application.Vault.ImportMnemonic(ctx, mnemonic, "", password)
		if err != nil {
			return err
		}
		return printJSON(addrs)
	},
}

var keysStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "查看双重加密与 PIN 状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := application.Vault.DoubleEncryptionEnabled(cmd.Context())
		if err != nil {
			return err
		}
		pin, err := application.Vault.PinEnabled(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("双重加密: %v\nPIN:      %v\n", enabled, pin)
		return nil
	},
}

func passwordFlag(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	return secretFlag(password, "请输入钱包口令: ")
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysEncryptCmd, keysDecryptCmd, keysImportCmd, keysStatusCmd)
	for _, c := range []*cobra.Command{keysEncryptCmd, keysDecryptCmd, keysImportCmd} {
		c.Flags().StringP("password", "p", "", "钱包口令 (留空则交互输入)")
	}
	keysImportCmd.Flags().String("mnemonic", "", "助记词 (留空则交互输入)")
	keysImportCmd.Flags().Bool("generate", false, "生成新的 24 词助记词并导入")
}
