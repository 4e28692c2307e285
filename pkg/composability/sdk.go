package composability

import (
	solanago "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/code-payments/composability-codec/pkg/solana"
)

// FromSolanaGo maps an instruction built by any solana-go based SDK into the
// canonical Instruction. Account metas are copied; the SDK value is not
// retained.
func FromSolanaGo(ix solanago.Instruction) (Instruction, error) {
	if ix == nil {
		return Instruction{}, malformed("instruction", -1, "nil instruction")
	}

	data, err := ix.Data()
	if err != nil {
		return Instruction{}, errors.Wrap(err, "failed to serialize instruction data")
	}

	metas := ix.Accounts()
	var accounts []AccountMeta
	if len(metas) > 0 {
		accounts = make([]AccountMeta, len(metas))
	}
	for i, meta := range metas {
		if meta == nil {
			return Instruction{}, malformed("account", i, "nil account meta")
		}

		accounts[i] = AccountMeta{
			Account:    PublicKeyWord(meta.PublicKey),
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
		}
	}

	return Instruction{
		ProgramID: PublicKeyWord(ix.ProgramID()),
		Accounts:  accounts,
		Data:      data,
	}, nil
}

// ToSolanaGo converts the instruction into a solana-go generic instruction.
func (i Instruction) ToSolanaGo() *solanago.GenericInstruction {
	metas := make(solanago.AccountMetaSlice, len(i.Accounts))
	for idx, account := range i.Accounts {
		metas[idx] = &solanago.AccountMeta{
			PublicKey:  solanago.PublicKey(account.Account),
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	return solanago.NewInstruction(solanago.PublicKey(i.ProgramID), metas, i.Data)
}

// FromSolanaInstruction maps an in-repo Solana instruction into the canonical
// Instruction.
func FromSolanaInstruction(ix solana.Instruction) (Instruction, error) {
	programID, err := WordFromPublicKey(ix.Program)
	if err != nil {
		return Instruction{}, errors.Wrap(err, "invalid program id")
	}

	var accounts []AccountMeta
	if len(ix.Accounts) > 0 {
		accounts = make([]AccountMeta, len(ix.Accounts))
	}
	for idx, meta := range ix.Accounts {
		account, err := FromSolanaAccountMeta(meta)
		if err != nil {
			return Instruction{}, malformed("account", idx, err.Error())
		}
		accounts[idx] = account
	}

	return Instruction{
		ProgramID: programID,
		Accounts:  accounts,
		Data:      ix.Data,
	}, nil
}

// ToSolanaInstruction converts the instruction into the in-repo Solana type.
func (i Instruction) ToSolanaInstruction() solana.Instruction {
	accounts := make([]solana.AccountMeta, len(i.Accounts))
	for idx, account := range i.Accounts {
		accounts[idx] = solana.AccountMeta{
			PublicKey:  account.Account.PublicKey(),
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	return solana.NewInstruction(i.ProgramID.PublicKey(), i.Data, accounts...)
}
