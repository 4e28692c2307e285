package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/composability-codec/pkg/bridge"
	"github.com/code-payments/composability-codec/pkg/composability"
	"github.com/code-payments/composability-codec/pkg/rate"
	"github.com/code-payments/composability-codec/pkg/solana"
)

const (
	evmRPCFlag         = "evm-rpc"
	bridgeContractFlag = "bridge-contract"
	chainIDFlag        = "chain-id"
	privateKeyFlag     = "private-key"
	rpsFlag            = "rps"
	solanaRPCFlag      = "solana-rpc"

	confirmationDepthFlag   = "confirmation-depth"
	pollIntervalFlag        = "poll-interval"
	confirmationTimeoutFlag = "confirmation-timeout"
	gasLimitFlag            = "gas-limit"
)

type resultJSON struct {
	ID          string        `json:"id"`
	Index       int           `json:"index"`
	TxHash      string        `json:"tx_hash"`
	BlockNumber uint64        `json:"block_number"`
	LogIndex    uint          `json:"log_index"`
	Response    hexutil.Bytes `json:"response"`
}

func addBridgeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String(evmRPCFlag, "", "EVM JSON-RPC endpoint")
	flags.String(bridgeContractFlag, "", "Bridge contract address (0x..)")
	flags.Uint64(chainIDFlag, 0, "EVM chain id (default queried from the endpoint)")
	flags.Float64(rpsFlag, 0, "Maximum read requests per second per method (0 disables limiting)")
}

// bridgeClient builds a bridge client from flags, the environment and the
// config file. Submission parameters are read through bridge.WithViperConfigs.
func (a *app) bridgeClient(ctx context.Context, withKey bool) (*bridge.Client, *ethclient.Client, error) {
	endpoint := a.v.GetString(evmRPCFlag)
	if endpoint == "" {
		return nil, nil, errors.Errorf("--%s is required", evmRPCFlag)
	}
	contract, err := parseEVMAddress(a.v.GetString(bridgeContractFlag))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid --%s", bridgeContractFlag)
	}

	backend, err := bridge.Dial(ctx, endpoint)
	if err != nil {
		return nil, nil, err
	}

	chainID := new(big.Int).SetUint64(a.v.GetUint64(chainIDFlag))
	if chainID.Sign() == 0 {
		chainID, err = backend.ChainID(ctx)
		if err != nil {
			backend.Close()
			return nil, nil, errors.Wrap(err, "failed to query chain id")
		}
	}

	codec, err := a.codec()
	if err != nil {
		backend.Close()
		return nil, nil, err
	}

	opts := []bridge.Option{bridge.WithCodec(codec)}
	if rps := a.v.GetFloat64(rpsFlag); rps > 0 {
		opts = append(opts, bridge.WithRateLimiter(rate.NewLocalRateLimiter(xrate.Limit(rps))))
	}
	if withKey {
		key, err := a.privateKey()
		if err != nil {
			backend.Close()
			return nil, nil, err
		}
		opts = append(opts, bridge.WithPrivateKey(key))
	}

	client := bridge.NewClient(backend, contract, chainID, bridge.WithViperConfigs(a.v), opts...)
	a.log.WithFields(map[string]interface{}{
		"contract": contract.Hex(),
		"chain_id": chainID.String(),
		"from":     client.From().Hex(),
	}).Debug("created bridge client")

	return client, backend, nil
}

func (a *app) privateKey() (*ecdsa.PrivateKey, error) {
	raw := strings.TrimPrefix(a.v.GetString(privateKeyFlag), "0x")
	if raw == "" {
		return nil, errors.Errorf("a signing key is required (set %s_PRIVATE_KEY)", envPrefix)
	}

	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}
	return key, nil
}

func newSubmitCmd(a *app) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one or more instructions through the bridge contract",
		Long: `Reads {"instructions": [{"program_id", "accounts", "data", "lamports", "salt"}]} from
--input or stdin. A single instruction is sent with execute, several with batchExecute.
The signing key is read from COMPOSER_PRIVATE_KEY or the config file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(input, cmd.InOrStdin())
			if err != nil {
				return errors.Wrap(err, "failed to read input")
			}

			var submission submissionJSON
			if err := jsonUnmarshal(raw, &submission); err != nil {
				return err
			}
			if len(submission.Instructions) == 0 {
				return bridge.ErrEmptyBatch
			}

			ixs := make([]composability.Instruction, len(submission.Instructions))
			lamports := make([]uint64, len(submission.Instructions))
			salts := make([]*composability.Salt, len(submission.Instructions))
			for i, j := range submission.Instructions {
				if ixs[i], err = j.toInstruction(); err != nil {
					return errors.Wrapf(err, "instruction %d", i)
				}
				if salts[i], err = j.salt(); err != nil {
					return errors.Wrapf(err, "instruction %d", i)
				}
				lamports[i] = j.Lamports
			}

			client, backend, err := a.bridgeClient(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer backend.Close()

			var results []*bridge.SubmissionResult
			if len(ixs) == 1 {
				result, err := client.SubmitSingle(cmd.Context(), ixs[0], lamports[0], salts[0])
				if err != nil {
					return err
				}
				results = append(results, result)
			} else {
				batchSalts := make([]composability.Salt, len(salts))
				for i, salt := range salts {
					if salt != nil {
						batchSalts[i] = *salt
					}
				}

				results, err = client.SubmitBatch(cmd.Context(), ixs, lamports, batchSalts)
				if err != nil {
					return err
				}
			}

			out := make([]resultJSON, len(results))
			for i, result := range results {
				out[i] = resultJSON{
					ID:          result.ID.String(),
					Index:       result.Index,
					TxHash:      result.TxHash.Hex(),
					BlockNumber: result.BlockNumber,
					LogIndex:    result.LogIndex,
					Response:    result.Response,
				}
			}

			return a.print(cmd, out, func() string {
				var sb strings.Builder
				for i, result := range out {
					if i > 0 {
						sb.WriteString("\n")
					}
					fmt.Fprintf(&sb, "%d %s block=%d response=%s", result.Index, result.TxHash, result.BlockNumber, result.Response)
				}
				return sb.String()
			})
		},
	}

	addBridgeFlags(cmd)
	flags := cmd.Flags()
	flags.StringVarP(&input, "input", "i", "", "Submission JSON file (default stdin)")
	flags.String(privateKeyFlag, "", "Hex encoded signing key (prefer the environment)")
	flags.Uint64(confirmationDepthFlag, 1, "Blocks that must include or follow the transaction")
	flags.Duration(pollIntervalFlag, 0, "Receipt polling interval")
	flags.Duration(confirmationTimeoutFlag, 0, "Maximum time to wait for confirmation")
	flags.Uint64(gasLimitFlag, 0, "Gas limit (0 estimates)")

	// The bridge package reads its settings with underscore keys.
	for flag, key := range map[string]string{
		confirmationDepthFlag:   bridge.ConfirmationDepthConfigKey,
		pollIntervalFlag:        bridge.PollIntervalConfigKey,
		confirmationTimeoutFlag: bridge.ConfirmationTimeoutConfigKey,
		gasLimitFlag:            bridge.GasLimitConfigKey,
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func newNeonAddressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neon-address <evm address>",
		Short: "Query the Solana account the bridge maps an EVM address to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			evm, err := parseEVMAddress(args[0])
			if err != nil {
				return err
			}

			client, backend, err := a.bridgeClient(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer backend.Close()

			address, err := client.GetNeonAddress(cmd.Context(), evm)
			if err != nil {
				return err
			}
			payer, err := client.GetPayer(cmd.Context())
			if err != nil {
				return err
			}

			return a.print(cmd, map[string]string{"address": address.String(), "payer": payer.String()}, func() string {
				return fmt.Sprintf("address=%s payer=%s", address, payer)
			})
		},
	}

	addBridgeFlags(cmd)
	return cmd
}

func (a *app) solanaClient() (solana.Client, error) {
	env, err := solana.ParseEnvironment(a.v.GetString(solanaRPCFlag))
	if err != nil {
		return nil, err
	}

	if rps := a.v.GetFloat64(rpsFlag); rps > 0 {
		return solana.NewRateLimitedClient(env.String(), rps), nil
	}
	return solana.New(env.String()), nil
}

func addSolanaFlags(cmd *cobra.Command) {
	cmd.Flags().String(solanaRPCFlag, "devnet", "Solana cluster (devnet, testnet, mainnet) or RPC URL")
	cmd.Flags().Float64(rpsFlag, 0, "Maximum requests per second per method (0 disables limiting)")
}

func newRentCmd(a *app) *cobra.Command {
	var size uint64

	cmd := &cobra.Command{
		Use:   "rent",
		Short: "Query the rent exempt minimum for an account size",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.solanaClient()
			if err != nil {
				return err
			}

			lamports, err := client.GetMinimumBalanceForRentExemption(cmd.Context(), size)
			if err != nil {
				return err
			}

			return a.print(cmd, map[string]uint64{"size": size, "lamports": lamports}, func() string {
				return fmt.Sprintf("%d", lamports)
			})
		},
	}

	addSolanaFlags(cmd)
	cmd.Flags().Uint64Var(&size, "size", 0, "Account data size in bytes")
	return cmd
}

type accountInfoJSON struct {
	Address    string        `json:"address"`
	Exists     bool          `json:"exists"`
	Owner      string        `json:"owner,omitempty"`
	Lamports   uint64        `json:"lamports"`
	Executable bool          `json:"executable"`
	Data       hexutil.Bytes `json:"data,omitempty"`
}

// newAccountCmd reports whether an account, typically a derived one, exists
// on the Solana cluster.
func newAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account <address>",
		Short: "Query a Solana account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			word, err := composability.EncodeAddress(args[0])
			if err != nil {
				return err
			}

			client, err := a.solanaClient()
			if err != nil {
				return err
			}

			out := accountInfoJSON{Address: word.String()}
			info, err := client.GetAccountInfo(cmd.Context(), word.PublicKey(), solana.CommitmentConfirmed)
			switch err {
			case nil:
				owner, err := composability.WordFromPublicKey(info.Owner)
				if err != nil {
					return err
				}

				out.Exists = true
				out.Owner = owner.String()
				out.Lamports = info.Lamports
				out.Executable = info.Executable
				out.Data = info.Data
			case solana.ErrNoAccountInfo:
			default:
				return err
			}

			return a.print(cmd, out, func() string {
				if !out.Exists {
					return fmt.Sprintf("%s does not exist", out.Address)
				}
				return fmt.Sprintf("%s owner=%s lamports=%d executable=%t data_len=%d", out.Address, out.Owner, out.Lamports, out.Executable, len(out.Data))
			})
		},
	}

	addSolanaFlags(cmd)
	return cmd
}
