package main

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/code-payments/composability-codec/pkg/composability"
)

func newEncodeCmd(a *app) *cobra.Command {
	var input string
	var overrides []string

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a JSON instruction into bridge wire format",
		Long: `Reads {"program_id", "accounts": [{"pubkey", "is_signer", "is_writable"}], "data": "0x.."}
from --input or stdin and prints the encoded instruction as hex.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := a.codec()
			if err != nil {
				return err
			}

			raw, err := readInput(input, cmd.InOrStdin())
			if err != nil {
				return errors.Wrap(err, "failed to read input")
			}
			j, err := parseInstructionJSON(raw)
			if err != nil {
				return err
			}
			ix, err := j.toInstruction()
			if err != nil {
				return err
			}

			if len(overrides) > 0 {
				replacements := make(map[int]composability.AccountMeta)
				for _, value := range overrides {
					index, meta, err := parseOverride(value)
					if err != nil {
						return err
					}
					replacements[index] = meta
				}

				ix.Accounts, err = composability.ApplyOverrides(ix.Accounts, replacements)
				if err != nil {
					return err
				}
			}

			encoded := hexutil.Encode(codec.Encode(ix))
			return a.print(cmd, map[string]string{"encoded": encoded}, func() string {
				return encoded
			})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Instruction JSON file (default stdin)")
	cmd.Flags().StringArrayVar(&overrides, "override", nil, "Replace an account: index=pubkey[,signer][,writable] (repeatable)")
	return cmd
}

func newDecodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode a bridge wire format instruction into JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := a.codec()
			if err != nil {
				return err
			}

			raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(args[0], "0x"), "0X"))
			if err != nil {
				return errors.Wrap(err, "invalid hex input")
			}

			ix, err := codec.Decode(raw)
			if err != nil {
				return err
			}

			j := fromInstruction(ix)
			return a.print(cmd, j, ix.String)
		},
	}
}

func newAddressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Convert between base-58 addresses and 32 byte words",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "encode <base58>",
		Short: "Print the 32 byte word for a base-58 address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			word, err := composability.EncodeAddress(args[0])
			if err != nil {
				return err
			}

			encoded := hexutil.Encode(word[:])
			return a.print(cmd, map[string]string{"word": encoded}, func() string {
				return encoded
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "decode <hex>",
		Short: "Print the base-58 address for a 32 byte word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hexutil.Decode(args[0])
			if err != nil {
				return errors.Wrap(err, "invalid hex word")
			}
			if len(raw) != composability.WordSize {
				return errors.Errorf("word has %d bytes, expected %d", len(raw), composability.WordSize)
			}

			var word composability.PublicKeyWord
			copy(word[:], raw)

			address := composability.DecodeAddress(word)
			return a.print(cmd, map[string]string{"address": address}, func() string {
				return address
			})
		},
	})

	return cmd
}
