package main

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/code-payments/composability-codec/pkg/composability"
)

type accountJSON struct {
	PublicKey  string `json:"pubkey"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

type instructionJSON struct {
	ProgramID string        `json:"program_id"`
	Accounts  []accountJSON `json:"accounts"`
	Data      hexutil.Bytes `json:"data"`

	// Submission parameters, ignored by encode.
	Lamports uint64 `json:"lamports,omitempty"`
	Salt     string `json:"salt,omitempty"`
}

type submissionJSON struct {
	Instructions []instructionJSON `json:"instructions"`
}

func (j instructionJSON) toInstruction() (composability.Instruction, error) {
	programID, err := composability.EncodeAddress(j.ProgramID)
	if err != nil {
		return composability.Instruction{}, errors.Wrap(err, "invalid program_id")
	}

	ix := composability.Instruction{
		ProgramID: programID,
		Data:      j.Data,
	}
	for i, account := range j.Accounts {
		word, err := composability.EncodeAddress(account.PublicKey)
		if err != nil {
			return composability.Instruction{}, errors.Wrapf(err, "invalid pubkey for account %d", i)
		}

		ix.Accounts = append(ix.Accounts, composability.AccountMeta{
			Account:    word,
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		})
	}

	return ix, nil
}

func (j instructionJSON) salt() (*composability.Salt, error) {
	if j.Salt == "" {
		return nil, nil
	}

	salt, err := composability.SaltFromHex(j.Salt)
	if err != nil {
		return nil, err
	}
	return &salt, nil
}

func fromInstruction(ix composability.Instruction) instructionJSON {
	j := instructionJSON{
		ProgramID: ix.ProgramID.String(),
		Accounts:  make([]accountJSON, len(ix.Accounts)),
		Data:      ix.Data,
	}
	if j.Data == nil {
		j.Data = hexutil.Bytes{}
	}

	for i, account := range ix.Accounts {
		j.Accounts[i] = accountJSON{
			PublicKey:  account.Account.String(),
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}
	return j
}

// readInput reads path, or stdin when path is empty or "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func parseInstructionJSON(raw []byte) (instructionJSON, error) {
	var j instructionJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return j, errors.Wrap(err, "invalid instruction json")
	}
	return j, nil
}

// parseOverride parses "index=pubkey[,signer][,writable]".
func parseOverride(value string) (int, composability.AccountMeta, error) {
	var meta composability.AccountMeta

	indexPart, rest, ok := strings.Cut(value, "=")
	if !ok {
		return 0, meta, errors.Errorf("override %q is not index=pubkey[,signer][,writable]", value)
	}

	index, err := strconv.Atoi(indexPart)
	if err != nil {
		return 0, meta, errors.Wrapf(err, "invalid override index %q", indexPart)
	}

	parts := strings.Split(rest, ",")
	meta.Account, err = composability.EncodeAddress(parts[0])
	if err != nil {
		return 0, meta, err
	}

	for _, flag := range parts[1:] {
		switch strings.TrimSpace(flag) {
		case "signer":
			meta.IsSigner = true
		case "writable":
			meta.IsWritable = true
		default:
			return 0, meta, errors.Errorf("unknown override flag %q", flag)
		}
	}

	return index, meta, nil
}

func jsonUnmarshal(raw []byte, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(err, "invalid json input")
	}
	return nil
}
