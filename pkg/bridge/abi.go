package bridge

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	executeMethod        = "execute"
	batchExecuteMethod   = "batchExecute"
	getNeonAddressMethod = "getNeonAddress"
	getPayerMethod       = "getPayer"

	logDataEvent = "LogData"
)

// ABI is the subset of the composability bridge contract used by Client.
const ABI = `[
	{
		"type": "function",
		"name": "execute",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "lamports", "type": "uint64"},
			{"name": "salt", "type": "bytes32"},
			{"name": "instruction", "type": "bytes"}
		],
		"outputs": [{"name": "", "type": "bytes"}]
	},
	{
		"type": "function",
		"name": "batchExecute",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "lamports", "type": "uint64[]"},
			{"name": "salts", "type": "bytes32[]"},
			{"name": "instructions", "type": "bytes[]"}
		],
		"outputs": [{"name": "", "type": "bytes[]"}]
	},
	{
		"type": "function",
		"name": "getNeonAddress",
		"stateMutability": "view",
		"inputs": [{"name": "evm_address", "type": "address"}],
		"outputs": [{"name": "", "type": "bytes32"}]
	},
	{
		"type": "function",
		"name": "getPayer",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "bytes32"}]
	},
	{
		"type": "event",
		"name": "LogData",
		"anonymous": false,
		"inputs": [{"name": "response", "type": "bytes", "indexed": false}]
	}
]`

var bridgeABI = mustParseABI(ABI)

// LogDataTopic is topic[0] of every LogData event.
var LogDataTopic = bridgeABI.Events[logDataEvent].ID

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
