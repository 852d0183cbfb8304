package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"wallet-custody/internal/hardware"
)

// readSecret 关闭回显读取口令 / PIN
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("读取输入失败: %w", err)
	}
	return string(b), nil
}

// secretFlag 优先使用命令行参数，否则交互输入
func secretFlag(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	return readSecret(prompt)
}

// terminalPrompter 无线发现时逐个询问用户是否连接
func terminalPrompter() hardware.Prompter {
	reader := bufio.NewReader(os.Stdin)
	return hardware.PrompterFunc(func(ctx context.Context, d hardware.Device) (bool, error) {
		fmt.Fprintf(os.Stderr, "发现设备 %s (%s)，是否连接? [y/N]: ", d.DisplayName, d.ID)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	})
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
