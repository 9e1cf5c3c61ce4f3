package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"ziggly-wallet/internal/balance"
	"ziggly-wallet/internal/blocktracker"
	"ziggly-wallet/internal/executor"
	"ziggly-wallet/internal/priceindex"
)

func init() {
	rootCmd.AddCommand(balanceCmd, sequenceCmd, priceIndexCmd, txLinkCmd, blockCmd)
	blockCmd.Flags().String("account", blocktracker.DefaultAccount, "用于估算最新块的账户")
}

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "查询 SUPRA 及所有已配置 token 的余额",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}
		snap, err := balance.NewReader(newClient(), registry).Fetch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Address: %s\n", snap.Address)
		for _, t := range snap.Tokens {
			fmt.Fprintf(out, "  %-10s %s ($%s)\n", t.TokenName, t.Balance.String(), t.ValueUSD.StringFixed(2))
		}
		fmt.Fprintf(out, "Total: $%s\n", snap.TotalUSD().StringFixed(2))
		return nil
	},
}

var sequenceCmd = &cobra.Command{
	Use:   "sequence <address>",
	Short: "查询账户当前的 sequence number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := newClient().SequenceNumber(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), seq)
		return nil
	},
}

var priceIndexCmd = &cobra.Command{
	Use:   "price-index",
	Short: "打印每个 token 的 bonding curve 进度",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry()
		if err != nil {
			return err
		}
		svc := priceindex.New(newClient(), registry, nil, nil, priceindex.Options{
			Contract: cfg.Contracts.Pump,
			Module:   cfg.Contracts.PumpModule,
		})
		idx, err := svc.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(idx)
	},
}

var txLinkCmd = &cobra.Command{
	Use:   "tx-link <tx-id>",
	Short: "生成区块浏览器链接",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), executor.ExplorerLink(cfg.Chain.ExplorerUrl, args[0]))
		return nil
	},
}

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "根据账户最新一笔交易估算主网最新块",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		account, _ := cmd.Flags().GetString("account")
		lb, err := blocktracker.New(newClient(), nil, account, 0).Fetch(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if lb.Source == blocktracker.SourceNone {
			fmt.Fprintln(out, "Latest block: not available")
			return nil
		}
		fmt.Fprintf(out, "Latest block: %d (%s)\n", lb.Height, lb.Source)
		if lb.TxHash != "" {
			fmt.Fprintf(out, "Transaction:  %s\n", executor.ExplorerLink(cfg.Chain.ExplorerUrl, lb.TxHash))
		}
		return nil
	},
}
