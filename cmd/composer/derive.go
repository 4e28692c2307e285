package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/code-payments/composability-codec/pkg/composability"
)

type derivedJSON struct {
	Address string `json:"address"`
	Bump    *uint8 `json:"bump,omitempty"`
}

func newDeriveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive program and bridge controlled addresses",
	}

	var base, program, salt, seed, evm string

	printDerived := func(cmd *cobra.Command, address composability.PublicKeyWord, bump *uint8) error {
		return a.print(cmd, derivedJSON{Address: address.String(), Bump: bump}, func() string {
			if bump == nil {
				return address.String()
			}
			return fmt.Sprintf("%s (bump %d)", address, *bump)
		})
	}

	pdaCmd := &cobra.Command{
		Use:   "pda",
		Short: "Derive the resource address for a base, program and salt",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseWord, programWord, err := parseWords(base, program)
			if err != nil {
				return err
			}
			saltWord, err := parseSalt(salt)
			if err != nil {
				return err
			}

			address, bump, err := composability.DeriveResourceAddressAndBump(baseWord, programWord, saltWord)
			if err != nil {
				return err
			}
			return printDerived(cmd, address, &bump)
		},
	}
	pdaCmd.Flags().StringVar(&base, "base", "", "Base authority address")
	pdaCmd.Flags().StringVar(&program, "program", "", "Owning program id")
	pdaCmd.Flags().StringVar(&salt, "salt", "", "Hex salt (default zero salt)")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Derive a create-with-seed address",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseWord, programWord, err := parseWords(base, program)
			if err != nil {
				return err
			}

			address, err := composability.DeriveCreateWithSeedAddress(baseWord, seed, programWord)
			if err != nil {
				return err
			}
			return printDerived(cmd, address, nil)
		},
	}
	seedCmd.Flags().StringVar(&base, "base", "", "Base address")
	seedCmd.Flags().StringVar(&program, "program", "", "Owning program id")
	seedCmd.Flags().StringVar(&seed, "seed", "", "Seed string (at most 32 bytes)")

	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Derive the bridge account of an EVM address",
		RunE: func(cmd *cobra.Command, args []string) error {
			bridgeProgram, evmAddress, err := parseBridgeArgs(program, evm)
			if err != nil {
				return err
			}

			address, err := a.deriver().BridgeAccountAddress(bridgeProgram, evmAddress)
			if err != nil {
				return err
			}
			return printDerived(cmd, address, nil)
		},
	}

	authorityCmd := &cobra.Command{
		Use:   "authority",
		Short: "Derive the external authority of a contract for a salt",
		RunE: func(cmd *cobra.Command, args []string) error {
			bridgeProgram, contract, err := parseBridgeArgs(program, evm)
			if err != nil {
				return err
			}
			saltWord, err := parseSalt(salt)
			if err != nil {
				return err
			}

			address, err := a.deriver().ExtAuthority(bridgeProgram, contract, saltWord)
			if err != nil {
				return err
			}
			return printDerived(cmd, address, nil)
		},
	}
	authorityCmd.Flags().StringVar(&salt, "salt", "", "Hex salt (default zero salt)")

	payerCmd := &cobra.Command{
		Use:   "payer",
		Short: "Derive the payer account of a contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			bridgeProgram, contract, err := parseBridgeArgs(program, evm)
			if err != nil {
				return err
			}

			address, err := a.deriver().Payer(bridgeProgram, contract)
			if err != nil {
				return err
			}
			return printDerived(cmd, address, nil)
		},
	}

	for _, c := range []*cobra.Command{accountCmd, authorityCmd, payerCmd} {
		c.Flags().StringVar(&program, "program", "", "Bridge program id")
		c.Flags().StringVar(&evm, "evm", "", "EVM address (0x..)")
	}

	cmd.AddCommand(pdaCmd, seedCmd, accountCmd, authorityCmd, payerCmd)
	return cmd
}

func parseWords(base, program string) (composability.PublicKeyWord, composability.PublicKeyWord, error) {
	baseWord, err := composability.EncodeAddress(base)
	if err != nil {
		return baseWord, composability.PublicKeyWord{}, errors.Wrap(err, "invalid --base")
	}

	programWord, err := composability.EncodeAddress(program)
	if err != nil {
		return baseWord, programWord, errors.Wrap(err, "invalid --program")
	}
	return baseWord, programWord, nil
}

func parseSalt(value string) (composability.Salt, error) {
	if value == "" {
		return composability.Salt{}, nil
	}

	salt, err := composability.SaltFromHex(value)
	if err != nil {
		return salt, errors.Wrap(err, "invalid --salt")
	}
	return salt, nil
}

func parseEVMAddress(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, errors.Errorf("invalid evm address %q", value)
	}
	return common.HexToAddress(value), nil
}

func parseBridgeArgs(program, evm string) (composability.PublicKeyWord, common.Address, error) {
	programWord, err := composability.EncodeAddress(program)
	if err != nil {
		return programWord, common.Address{}, errors.Wrap(err, "invalid --program")
	}

	evmAddress, err := parseEVMAddress(evm)
	if err != nil {
		return programWord, evmAddress, err
	}
	return programWord, evmAddress, nil
}
