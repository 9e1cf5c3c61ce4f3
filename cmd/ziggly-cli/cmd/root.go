package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ziggly-wallet/internal/rpc"
	"ziggly-wallet/internal/token"
	"ziggly-wallet/pkg/config"
)

var (
	rpcURL     string
	configPath string

	cfg *config.Config
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "ziggly-cli",
	Short: "Ziggly 钱包命令行工具",
	Long: `查询 Supra 主网上的余额 / sequence number / bonding curve 状态,
以及离线构造 buy / sell / transfer 的 payload 用于排查问题。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var paths []string
		if configPath != "" {
			paths = []string{configPath}
		}
		loaded, err := config.Load(paths...)
		if err != nil {
			return err
		}
		if rpcURL != "" {
			loaded.Chain.RpcUrl = rpcURL
		}
		cfg = loaded
		return nil
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc", "", "Supra RPC 地址 (默认读取配置)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config.yaml 所在目录")
}

func newClient() *rpc.Client {
	return rpc.NewClient(cfg.Chain.RpcUrl, rpc.WithTimeout(cfg.Chain.RpcTimeout))
}

func newRegistry() (*token.Registry, error) {
	return token.FromConfig(*cfg)
}
