package main

import (
	"crypto/ed25519"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/code-payments/composability-codec/pkg/composability"
	"github.com/code-payments/composability-codec/pkg/solana"
	"github.com/code-payments/composability-codec/pkg/solana/memo"
	"github.com/code-payments/composability-codec/pkg/solana/system"
)

// newBuildCmd prints instruction JSON for common programs, suitable as input
// to encode and submit.
func newBuildCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build instruction JSON for the system and memo programs",
	}

	printInstruction := func(cmd *cobra.Command, ix solana.Instruction) error {
		converted, err := composability.FromSolanaInstruction(ix)
		if err != nil {
			return err
		}

		j := fromInstruction(converted)
		return a.print(cmd, j, converted.String)
	}

	var from, to, owner string
	var lamports, size uint64

	transferCmd := &cobra.Command{
		Use:   "transfer",
		Short: "System program transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(map[string]string{"from": from, "to": to})
			if err != nil {
				return err
			}
			return printInstruction(cmd, system.Transfer(keys["from"], keys["to"], lamports))
		},
	}
	transferCmd.Flags().StringVar(&from, "from", "", "Funding account")
	transferCmd.Flags().StringVar(&to, "to", "", "Recipient account")
	transferCmd.Flags().Uint64Var(&lamports, "lamports", 0, "Lamports to transfer")

	createCmd := &cobra.Command{
		Use:   "create-account",
		Short: "System program create account",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(map[string]string{"from": from, "to": to, "owner": owner})
			if err != nil {
				return err
			}
			return printInstruction(cmd, system.CreateAccount(keys["from"], keys["to"], keys["owner"], lamports, size))
		},
	}
	createCmd.Flags().StringVar(&from, "from", "", "Funding account")
	createCmd.Flags().StringVar(&to, "to", "", "New account")
	createCmd.Flags().StringVar(&owner, "owner", "", "Program that will own the new account")
	createCmd.Flags().Uint64Var(&lamports, "lamports", 0, "Lamports to fund the account with")
	createCmd.Flags().Uint64Var(&size, "size", 0, "Account data size in bytes")

	assignCmd := &cobra.Command{
		Use:   "assign",
		Short: "System program assign",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(map[string]string{"to": to, "owner": owner})
			if err != nil {
				return err
			}
			return printInstruction(cmd, system.Assign(keys["to"], keys["owner"]))
		},
	}
	assignCmd.Flags().StringVar(&to, "account", "", "Account to assign")
	assignCmd.Flags().StringVar(&owner, "owner", "", "New owning program")

	var text string
	var signers []string
	memoCmd := &cobra.Command{
		Use:   "memo",
		Short: "Memo program instruction",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make(map[string]string, len(signers))
			for _, signer := range signers {
				keys[signer] = signer
			}
			parsed, err := parseKeys(keys)
			if err != nil {
				return err
			}

			signerKeys := make([]ed25519.PublicKey, len(signers))
			for i, signer := range signers {
				signerKeys[i] = parsed[signer]
			}
			return printInstruction(cmd, memo.Instruction(text, signerKeys...))
		},
	}
	memoCmd.Flags().StringVar(&text, "text", "", "Memo text")
	memoCmd.Flags().StringArrayVar(&signers, "signer", nil, "Account that must sign the memo (repeatable)")

	cmd.AddCommand(transferCmd, createCmd, assignCmd, memoCmd)
	return cmd
}

func parseKeys(values map[string]string) (map[string]ed25519.PublicKey, error) {
	keys := make(map[string]ed25519.PublicKey, len(values))
	for name, value := range values {
		word, err := composability.EncodeAddress(value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid --%s", name)
		}
		keys[name] = word.PublicKey()
	}
	return keys, nil
}
