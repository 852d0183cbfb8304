package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wallet-custody/internal/app"
	"wallet-custody/pkg/config"
	"wallet-custody/pkg/logger"
)

// application 在 PersistentPreRunE 中组装，所有子命令共用
var application *app.App

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "wallet-cli",
	Short: "多链钱包命令行工具",
	Long: `多链钱包 (ETH / BSC / POLYGON / AVAX / TRON) 命令行工具。
支持费用预估、软件私钥或硬件设备签名发送、私钥双重加密以及 PIN 解锁。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			logger.Init(cfg.App.Env)
		}

		// 命令行每次都是新进程，内存存储没有意义，改用加密文件
		if cfg.App.KeyStore == "" || cfg.App.KeyStore == "memory" {
			cfg.App.KeyStore = "file"
		}
		if path, _ := cmd.Flags().GetString("keystore"); path != "" {
			cfg.App.KeyStorePath = path
		}
		if cfg.App.KeyStore == "file" && cfg.App.KeyStoreSecret == "" {
			secret, err := readSecret("请输入本地密钥库口令: ")
			if err != nil {
				return err
			}
			cfg.App.KeyStoreSecret = secret
		}

		application, err = app.New(cmd.Context(), cfg, terminalPrompter())
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()
		if application == nil {
			return nil
		}
		return application.Close()
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("keystore", "", "本地密钥库文件路径 (默认使用配置 app.key_store_path)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "输出日志")
}
