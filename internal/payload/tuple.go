package payload

import (
	"encoding/json"
	"fmt"
)

// Options 第 8 个元素
type Options struct {
	TxExpiryTime int64 `json:"txExpiryTime"`
}

// Tuple is the positional argument list handed to the wallet's
// createRawTransactionData. It serialises as an 8-element JSON array;
// byte arguments become arrays of 0..255 integers (Uint8Array on the page).
type Tuple struct {
	Sender          string
	SequenceNumber  uint64
	ContractAddress string
	ModuleName      string
	FunctionName    string
	TypeArguments   []string
	Args            [2][]byte
	Options         Options
}

func (t Tuple) MarshalJSON() ([]byte, error) {
	typeArgs := t.TypeArguments
	if typeArgs == nil {
		typeArgs = []string{}
	}
	return json.Marshal([]interface{}{
		t.Sender,
		t.SequenceNumber,
		t.ContractAddress,
		t.ModuleName,
		t.FunctionName,
		typeArgs,
		[2][]int{byteInts(t.Args[0]), byteInts(t.Args[1])},
		t.Options,
	})
}

func (t *Tuple) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 8 {
		return fmt.Errorf("payload tuple: expected 8 elements, got %d", len(raw))
	}
	var args [2][]int
	targets := []interface{}{
		&t.Sender, &t.SequenceNumber, &t.ContractAddress, &t.ModuleName,
		&t.FunctionName, &t.TypeArguments, &args, &t.Options,
	}
	for i, target := range targets {
		if err := json.Unmarshal(raw[i], target); err != nil {
			return fmt.Errorf("payload tuple element %d: %w", i, err)
		}
	}
	for i := range args {
		b := make([]byte, len(args[i]))
		for j, v := range args[i] {
			if v < 0 || v > 255 {
				return fmt.Errorf("payload tuple arg %d: byte %d out of range", i, v)
			}
			b[j] = byte(v)
		}
		t.Args[i] = b
	}
	return nil
}

// FunctionID "0x..::module::function"
func (t Tuple) FunctionID() string {
	return t.ContractAddress + "::" + t.ModuleName + "::" + t.FunctionName
}

func byteInts(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
