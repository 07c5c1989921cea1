package rpc

import "encoding/json"

// Wire types for the chain JSON-RPC surface. Field sets follow the node's
// responses; anything version-dependent (receipt status shapes) is handled by
// the receipt adapter, not by engine code.

// BlockWithTxs is a block header plus its full transactions.
type BlockWithTxs struct {
	Number           uint64 `json:"block_number"`
	Hash             string `json:"block_hash"`
	ParentHash       string `json:"parent_hash"`
	NewRoot          string `json:"new_root"`
	Timestamp        int64  `json:"timestamp"` // unix seconds
	SequencerAddress string `json:"sequencer_address"`
	Transactions     []Tx   `json:"transactions"`
}

// Tx is one transaction as returned inside a block.
type Tx struct {
	Hash          string `json:"transaction_hash"`
	Type          string `json:"type"` // INVOKE, DECLARE, DEPLOY, DEPLOY_ACCOUNT, L1_HANDLER
	SenderAddress string `json:"sender_address"`
	// Deploy-type transactions carry these instead of a sender.
	ContractAddress     string   `json:"contract_address"`
	ClassHash           string   `json:"class_hash"`
	ConstructorCalldata []string `json:"constructor_calldata"`
	Calldata            []string `json:"calldata"`
	Signature           []string `json:"signature"`
	MaxFee              string   `json:"max_fee"`
	Version             string   `json:"version"`
	Nonce               string   `json:"nonce"`
}

// IsDeploy reports whether the transaction deploys a contract.
func (t *Tx) IsDeploy() bool {
	return t.Type == "DEPLOY" || t.Type == "DEPLOY_ACCOUNT"
}

// RawEvent is one event as it appears in a receipt.
type RawEvent struct {
	FromAddress string   `json:"from_address"`
	Keys        []string `json:"keys"`
	Data        []string `json:"data"`
}

// Receipt is a transaction receipt. Status fields vary by node version:
// newer nodes report execution_status/finality_status, older ones a single
// status string. Use the adapter in receipt.go instead of reading these
// fields directly.
type Receipt struct {
	TxHash          string     `json:"transaction_hash"`
	ExecutionStatus string     `json:"execution_status,omitempty"`
	FinalityStatus  string     `json:"finality_status,omitempty"`
	Status          string     `json:"status,omitempty"`
	Events          []RawEvent `json:"events"`
}

// rpcRequest is a JSON-RPC 2.0 envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      uint64 `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      uint64          `json:"id"`
}
