package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/composability-codec/pkg/composability"
)

const (
	testProgram = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	testAccount = "SysvarRent111111111111111111111111111111111"
	testBase    = "SysvarC1ock11111111111111111111111111111111"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	cmd := NewRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestEncodeDecode(t *testing.T) {
	input := `{
		"program_id": "` + testProgram + `",
		"accounts": [{"pubkey": "` + testAccount + `", "is_signer": true, "is_writable": false}],
		"data": "0x0102ff"
	}`

	encoded, err := execute(t, input, "encode")
	require.NoError(t, err)

	expected := composability.NewInstruction(
		composability.MustEncodeAddress(testProgram),
		[]byte{0x01, 0x02, 0xff},
		composability.NewReadonlyAccountMeta(composability.MustEncodeAddress(testAccount), true),
	)
	assert.Equal(t, hexutil.Encode(expected.Marshal()), encoded)

	decoded, err := execute(t, "", "decode", encoded, "-o", "json")
	require.NoError(t, err)

	var j instructionJSON
	require.NoError(t, json.Unmarshal([]byte(decoded), &j))
	assert.Equal(t, testProgram, j.ProgramID)
	require.Len(t, j.Accounts, 1)
	assert.Equal(t, testAccount, j.Accounts[0].PublicKey)
	assert.True(t, j.Accounts[0].IsSigner)
	assert.False(t, j.Accounts[0].IsWritable)
	assert.EqualValues(t, []byte{0x01, 0x02, 0xff}, j.Data)
}

func TestEncode_Override(t *testing.T) {
	input := `{
		"program_id": "` + testProgram + `",
		"accounts": [{"pubkey": "` + testAccount + `"}],
		"data": "0x"
	}`

	encoded, err := execute(t, input, "encode", "--override", "0="+testBase+",signer,writable")
	require.NoError(t, err)

	expected := composability.NewInstruction(
		composability.MustEncodeAddress(testProgram),
		nil,
		composability.NewAccountMeta(composability.MustEncodeAddress(testBase), true),
	)
	assert.Equal(t, hexutil.Encode(expected.Marshal()), encoded)

	_, err = execute(t, input, "encode", "--override", "1="+testBase)
	assert.Error(t, err)
}

func TestEncode_LittleEndian(t *testing.T) {
	input := `{"program_id": "` + testProgram + `", "accounts": [], "data": "0x01"}`

	encoded, err := execute(t, input, "encode", "--byte-order", "little")
	require.NoError(t, err)

	raw, err := hexutil.Decode(encoded)
	require.NoError(t, err)
	require.Len(t, raw, 32+8+8+1)
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, raw[40:48])

	_, err = execute(t, input, "encode", "--byte-order", "middle")
	assert.Error(t, err)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := execute(t, "", "decode", "0x00")
	assert.ErrorIs(t, err, composability.ErrTruncatedInput)

	_, err = execute(t, "", "decode", "zz")
	assert.Error(t, err)
}

func TestAddress(t *testing.T) {
	word, err := execute(t, "", "address", "encode", testAccount)
	require.NoError(t, err)

	expected := composability.MustEncodeAddress(testAccount)
	assert.Equal(t, hexutil.Encode(expected[:]), word)

	address, err := execute(t, "", "address", "decode", word)
	require.NoError(t, err)
	assert.Equal(t, testAccount, address)

	_, err = execute(t, "", "address", "decode", "0x0102")
	assert.Error(t, err)

	_, err = execute(t, "", "address", "encode", "not-base58-0OIl")
	assert.ErrorIs(t, err, composability.ErrInvalidAddress)
}

func TestDerive(t *testing.T) {
	base := composability.MustEncodeAddress(testBase)
	program := composability.MustEncodeAddress(testProgram)

	out, err := execute(t, "", "derive", "seed", "--base", testBase, "--program", testProgram, "--seed", "bridge", "-o", "json")
	require.NoError(t, err)

	var derived derivedJSON
	require.NoError(t, json.Unmarshal([]byte(out), &derived))
	expected, err := composability.DeriveCreateWithSeedAddress(base, "bridge", program)
	require.NoError(t, err)
	assert.Equal(t, expected.String(), derived.Address)
	assert.Nil(t, derived.Bump)

	out, err = execute(t, "", "derive", "pda", "--base", testBase, "--program", testProgram, "-o", "json")
	require.NoError(t, err)

	derived = derivedJSON{}
	require.NoError(t, json.Unmarshal([]byte(out), &derived))
	expected, bump, err := composability.DeriveResourceAddressAndBump(base, program, composability.Salt{})
	require.NoError(t, err)
	assert.Equal(t, expected.String(), derived.Address)
	require.NotNil(t, derived.Bump)
	assert.Equal(t, bump, *derived.Bump)

	_, err = execute(t, "", "derive", "payer", "--program", testProgram, "--evm", "not-an-address")
	assert.Error(t, err)
}

func TestSubmit_RequiresEndpoint(t *testing.T) {
	input := `{"instructions": [{"program_id": "` + testProgram + `", "data": "0x01"}]}`

	_, err := execute(t, input, "submit")
	assert.Error(t, err)

	_, err = execute(t, `{"instructions": []}`, "submit")
	assert.Error(t, err)
}

func TestBuild_Transfer(t *testing.T) {
	out, err := execute(t, "", "build", "transfer", "--from", testBase, "--to", testAccount, "--lamports", "42", "-o", "json")
	require.NoError(t, err)

	var j instructionJSON
	require.NoError(t, json.Unmarshal([]byte(out), &j))
	assert.Equal(t, composability.NullAddress, j.ProgramID)
	require.Len(t, j.Accounts, 2)
	assert.Equal(t, testBase, j.Accounts[0].PublicKey)
	assert.True(t, j.Accounts[0].IsSigner)
	assert.Equal(t, testAccount, j.Accounts[1].PublicKey)
	assert.False(t, j.Accounts[1].IsSigner)
	assert.EqualValues(t, []byte{2, 0, 0, 0, 42, 0, 0, 0, 0, 0, 0, 0}, j.Data)

	// The built instruction feeds straight into encode.
	encoded, err := execute(t, out, "encode")
	require.NoError(t, err)

	ix, err := j.toInstruction()
	require.NoError(t, err)
	assert.Equal(t, hexutil.Encode(ix.Marshal()), encoded)
}

func TestBuild_Memo(t *testing.T) {
	out, err := execute(t, "", "build", "memo", "--text", "hello", "--signer", testAccount, "-o", "json")
	require.NoError(t, err)

	var j instructionJSON
	require.NoError(t, json.Unmarshal([]byte(out), &j))
	assert.Equal(t, "Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo", j.ProgramID)
	require.Len(t, j.Accounts, 1)
	assert.True(t, j.Accounts[0].IsSigner)
	assert.False(t, j.Accounts[0].IsWritable)
	assert.Equal(t, "hello", string(j.Data))

	_, err = execute(t, "", "build", "transfer", "--from", "", "--to", testAccount)
	assert.ErrorIs(t, err, composability.ErrInvalidAddress)
}

func newSolanaServer(t *testing.T, results map[string]interface{}) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			ID     int    `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, ok := results[req.Method]
		require.True(t, ok, req.Method)

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRent(t *testing.T) {
	server := newSolanaServer(t, map[string]interface{}{
		"getMinimumBalanceForRentExemption": 1461600,
	})

	out, err := execute(t, "", "rent", "--size", "82", "--solana-rpc", server.URL)
	require.NoError(t, err)
	assert.Equal(t, "1461600", out)

	_, err = execute(t, "", "rent", "--size", "82", "--solana-rpc", "ftp://nowhere")
	assert.Error(t, err)
}

func TestAccount(t *testing.T) {
	server := newSolanaServer(t, map[string]interface{}{
		"getAccountInfo": map[string]interface{}{
			"value": map[string]interface{}{
				"lamports":   1000,
				"owner":      testProgram,
				"data":       []string{"AQI=", "base64"},
				"executable": false,
			},
		},
	})

	out, err := execute(t, "", "account", testAccount, "--solana-rpc", server.URL, "-o", "json")
	require.NoError(t, err)

	var info accountInfoJSON
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.True(t, info.Exists)
	assert.Equal(t, testAccount, info.Address)
	assert.Equal(t, testProgram, info.Owner)
	assert.EqualValues(t, 1000, info.Lamports)
	assert.EqualValues(t, []byte{1, 2}, info.Data)

	missing := newSolanaServer(t, map[string]interface{}{
		"getAccountInfo": map[string]interface{}{"value": nil},
	})
	out, err = execute(t, "", "account", testAccount, "--solana-rpc", missing.URL)
	require.NoError(t, err)
	assert.Equal(t, testAccount+" does not exist", out)
}
