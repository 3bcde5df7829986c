package solana

import (
	"encoding/json"
)

// JSON-RPC shapes for getSignaturesForAddress and getTransaction (jsonParsed)

type signaturesConfig struct {
	Limit      int    `json:"limit,omitempty"`
	Before     string `json:"before,omitempty"`
	Commitment string `json:"commitment,omitempty"`
}

// SignatureInfo is one entry of getSignaturesForAddress
type SignatureInfo struct {
	Signature          string          `json:"signature"`
	Slot               int64           `json:"slot"`
	BlockTime          *int64          `json:"blockTime"`
	Err                json.RawMessage `json:"err"`
	Memo               *string         `json:"memo"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

// Failed reports whether the transaction errored on chain
func (s SignatureInfo) Failed() bool {
	return len(s.Err) > 0 && string(s.Err) != "null"
}

type transactionConfig struct {
	Encoding                       string `json:"encoding"`
	MaxSupportedTransactionVersion int    `json:"maxSupportedTransactionVersion"`
	Commitment                     string `json:"commitment,omitempty"`
}

type balanceResult struct {
	Value uint64 `json:"value"`
}

// TransactionResult is a getTransaction response in jsonParsed encoding
type TransactionResult struct {
	Slot        int64      `json:"slot"`
	BlockTime   *int64     `json:"blockTime"`
	Meta        *txMeta    `json:"meta"`
	Transaction txEnvelope `json:"transaction"`
}

type txMeta struct {
	Err               json.RawMessage    `json:"err"`
	Fee               uint64             `json:"fee"`
	PreBalances       []int64            `json:"preBalances"`
	PostBalances      []int64            `json:"postBalances"`
	PreTokenBalances  []tokenBalance     `json:"preTokenBalances"`
	PostTokenBalances []tokenBalance     `json:"postTokenBalances"`
	InnerInstructions []innerInstruction `json:"innerInstructions"`
}

type innerInstruction struct {
	Index        int           `json:"index"`
	Instructions []instruction `json:"instructions"`
}

type tokenBalance struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount   string `json:"amount"`
		Decimals int32  `json:"decimals"`
	} `json:"uiTokenAmount"`
}

type txEnvelope struct {
	Signatures []string `json:"signatures"`
	Message    struct {
		AccountKeys  []accountKey  `json:"accountKeys"`
		Instructions []instruction `json:"instructions"`
	} `json:"message"`
}

// accountKey accepts both the jsonParsed object form and the plain string form
type accountKey struct {
	Pubkey   string `json:"pubkey"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

func (k *accountKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		k.Pubkey = s
		return nil
	}
	type plain accountKey
	return json.Unmarshal(data, (*plain)(k))
}

type instruction struct {
	Program   string `json:"program"`
	ProgramID string `json:"programId"`
	// Parsed is an object for known programs and a bare string for some (memo)
	Parsed json.RawMessage `json:"parsed"`
}

type parsedInstruction struct {
	Type string       `json:"type"`
	Info transferInfo `json:"info"`
}

type transferInfo struct {
	Source            string `json:"source"`
	Destination       string `json:"destination"`
	Authority         string `json:"authority"`
	MultisigAuthority string `json:"multisigAuthority"`
	Mint              string `json:"mint"`
	Amount            string `json:"amount"`
	TokenAmount       *struct {
		Amount   string `json:"amount"`
		Decimals int32  `json:"decimals"`
	} `json:"tokenAmount"`
}
