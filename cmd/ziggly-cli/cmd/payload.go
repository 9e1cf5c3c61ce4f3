package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"ziggly-wallet/internal/payload"
)

var (
	kindFlag      string
	senderFlag    string
	amountFlag    string
	minFlag       string
	recipientFlag string
	sequenceFlag  uint64
	expiryFlag    int64
)

func init() {
	rootCmd.AddCommand(payloadCmd)
	payloadCmd.Flags().StringVarP(&kindFlag, "kind", "k", "buy", "buy / sell / transfer")
	payloadCmd.Flags().StringVarP(&senderFlag, "sender", "s", "", "发送者地址")
	payloadCmd.Flags().StringVarP(&amountFlag, "amount", "a", "", "金额 (可读单位)")
	payloadCmd.Flags().StringVar(&minFlag, "min", "0", "minimum received (buy/sell)")
	payloadCmd.Flags().StringVarP(&recipientFlag, "recipient", "r", "", "收款地址 (transfer)")
	payloadCmd.Flags().Uint64Var(&sequenceFlag, "sequence", 0, "账户 sequence number")
	payloadCmd.Flags().Int64Var(&expiryFlag, "expiry", 0, "过期秒数, 0 使用配置")
	_ = payloadCmd.MarkFlagRequired("sender")
	_ = payloadCmd.MarkFlagRequired("amount")
	_ = payloadCmd.MarkFlagRequired("sequence")
}

var payloadCmd = &cobra.Command{
	Use:   "payload",
	Short: "离线构造 createRawTransactionData 的参数 tuple",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := payload.Kind(kindFlag)
		if !kind.Valid() {
			return fmt.Errorf("unknown kind %q", kindFlag)
		}
		amount, err := payload.ParseAmount(amountFlag)
		if err != nil {
			return err
		}
		minimum, err := decimal.NewFromString(minFlag)
		if err != nil {
			return fmt.Errorf("--min: %w", err)
		}

		registry, err := newRegistry()
		if err != nil {
			return err
		}
		t, ok := registry.Lookup(cfg.Trade.Token)
		if !ok {
			return fmt.Errorf("trade token %s not configured", cfg.Trade.Token)
		}
		buy, sell := payload.PumpRoutes(cfg.Contracts.Pump, cfg.Contracts.PumpModule, t.PreCA, t.MainCA, t.Decimals)
		builder := payload.NewBuilder(map[payload.Kind]payload.Route{
			payload.KindBuy:      buy,
			payload.KindSell:     sell,
			payload.KindTransfer: payload.TransferRoute(),
		}, payload.WithExpiryWindow(cfg.Tx.ExpiryWindow))

		tuple, err := builder.Build(payload.Intent{
			Kind:            kind,
			Sender:          senderFlag,
			Amount:          amount,
			MinimumReceived: minimum,
			Recipient:       recipientFlag,
			ExpirySeconds:   expiryFlag,
		}, sequenceFlag)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tuple)
	},
}
