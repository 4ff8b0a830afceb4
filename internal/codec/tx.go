package codec

import (
	"encoding/json"
	"fmt"
)

// TxEnvelope is the v0 transaction container.
//
// CometBFT transactions are opaque bytes. For v0 localnet we use JSON-encoded
// txs to move fast; this is NOT the final protocol encoding.
type TxEnvelope struct {
	// Basic routing.
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// v0 tx auth:
	// - Nonce: included in the signed message for replay protection (must increase per signer).
	// - Signer: logical signer id; the authenticated caller identity for game operations.
	// - Sig: Ed25519 signature over (type, nonce, signer, sha256(value)).
	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// ---- Bank ----

type BankMintTx struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type BankSendTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// ---- Auth (v0) ----

// v0: account pubkey registration for tx authentication.
type AuthRegisterAccountTx struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

// ---- Lottery ----

// The tx signer is the caller for every lottery operation; payloads never
// carry a separate caller field.

type LotteryCreateGameTx struct {
	// Operator defaults to the creating signer when empty.
	Operator string `json:"operator,omitempty"`
	// MaxValue bounds outcomes and categories (0..MaxValue). 0 means the
	// default bound.
	MaxValue uint64 `json:"maxValue,omitempty"`
	// Stake, when non-zero, is escrowed from each wagerer into the game pot.
	Stake uint64 `json:"stake,omitempty"`
	Label string `json:"label,omitempty"`
}

type LotteryCommitTx struct {
	GameID uint64 `json:"gameId"`
	Digest []byte `json:"digest"` // base64 (32 bytes)
}

type LotteryPlaceWagerTx struct {
	GameID   uint64 `json:"gameId"`
	Category uint64 `json:"category"`
}

type LotteryRevealTx struct {
	GameID uint64 `json:"gameId"`
	Value  uint64 `json:"value"`
	Secret uint64 `json:"secret"`
}

type LotteryRestartTx struct {
	GameID uint64 `json:"gameId"`
}
