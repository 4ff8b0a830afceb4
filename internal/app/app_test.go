package app

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"strconv"
	"sync"
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainlotto/chain/internal/codec"
)

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func txBytes(t *testing.T, typ string, value any) []byte {
	t.Helper()
	return mustMarshal(t, map[string]any{
		"type":  typ,
		"value": value,
	})
}

// testEd25519Key derives a stable keypair from the signer id so tests never
// juggle key material.
func testEd25519Key(id string) (ed25519.PublicKey, ed25519.PrivateKey) {
	seed := sha256.Sum256([]byte("ocl/test/keys|" + id))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return priv.Public().(ed25519.PublicKey), priv
}

var (
	testNonceMu sync.Mutex
	testNonces  = map[string]uint64{}
)

func nextTestNonce(signer string) string {
	testNonceMu.Lock()
	defer testNonceMu.Unlock()
	testNonces[signer]++
	return strconv.FormatUint(testNonces[signer], 10)
}

func txBytesSigned(t *testing.T, typ string, value any, signer string) []byte {
	t.Helper()
	valueBytes := mustMarshal(t, value)
	nonce := nextTestNonce(signer)
	_, priv := testEd25519Key(signer)
	sig := ed25519.Sign(priv, txAuthSignBytesV0(typ, valueBytes, nonce, signer))
	return mustMarshal(t, codec.TxEnvelope{
		Type:   typ,
		Value:  valueBytes,
		Nonce:  nonce,
		Signer: signer,
		Sig:    sig,
	})
}

func findEvent(events []abci.Event, typ string) *abci.Event {
	for i := range events {
		if events[i].Type == typ {
			return &events[i]
		}
	}
	return nil
}

func attr(ev *abci.Event, key string) string {
	if ev == nil {
		return ""
	}
	for _, a := range ev.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

func parseU64(t *testing.T, s string) uint64 {
	t.Helper()
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		t.Fatalf("parse uint64 %q: %v", s, err)
	}
	return n
}

func newTestApp(t *testing.T) *OCLApp {
	t.Helper()
	a, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func mustOk(t *testing.T, res *abci.ExecTxResult) *abci.ExecTxResult {
	t.Helper()
	if res.Code != 0 {
		t.Fatalf("expected ok, got code=%d log=%q", res.Code, res.Log)
	}
	return res
}

func mustFailCode(t *testing.T, res *abci.ExecTxResult, codespace string) *abci.ExecTxResult {
	t.Helper()
	if res.Code == 0 {
		t.Fatalf("expected failure %q, got ok", codespace)
	}
	if res.Codespace != codespace {
		t.Fatalf("expected codespace %q, got %q (log=%q)", codespace, res.Codespace, res.Log)
	}
	return res
}

func mintTestTokens(t *testing.T, a *OCLApp, height int64, to string, amount uint64) {
	t.Helper()
	mustOk(t, a.deliverTx(txBytes(t, "bank/mint", map[string]any{"to": to, "amount": amount}), height))
}

func registerTestAccount(t *testing.T, a *OCLApp, height int64, id string) {
	t.Helper()
	if len(a.st.AccountKeys[id]) != 0 {
		return
	}
	pub, _ := testEd25519Key(id)
	mustOk(t, a.deliverTx(txBytesSigned(t, "auth/register_account", map[string]any{
		"account": id,
		"pubKey":  []byte(pub),
	}, id), height))
}

// createTestGame registers the creator and creates a game, returning its id.
func createTestGame(t *testing.T, a *OCLApp, height int64, creator string, value map[string]any) uint64 {
	t.Helper()
	registerTestAccount(t, a, height, creator)
	res := mustOk(t, a.deliverTx(txBytesSigned(t, "lottery/create_game", value, creator), height))
	ev := findEvent(res.Events, "GameCreated")
	if ev == nil {
		t.Fatalf("expected GameCreated event")
	}
	return parseU64(t, attr(ev, "gameId"))
}

func TestBankMintAndSend(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	mintTestTokens(t, a, height, "alice", 100)
	registerTestAccount(t, a, height, "alice")

	mustOk(t, a.deliverTx(txBytesSigned(t, "bank/send", map[string]any{
		"from": "alice", "to": "bob", "amount": uint64(40),
	}, "alice"), height))

	if got := a.st.Balance("alice"); got != 60 {
		t.Fatalf("alice balance: got %d want 60", got)
	}
	if got := a.st.Balance("bob"); got != 40 {
		t.Fatalf("bob balance: got %d want 40", got)
	}
}

func TestBankSend_RejectsUnsignedAndOverdraft(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	mintTestTokens(t, a, height, "alice", 10)
	registerTestAccount(t, a, height, "alice")

	res := a.deliverTx(txBytes(t, "bank/send", map[string]any{
		"from": "alice", "to": "bob", "amount": uint64(1),
	}), height)
	if res.Code == 0 {
		t.Fatalf("expected unsigned send to be rejected")
	}

	res = a.deliverTx(txBytesSigned(t, "bank/send", map[string]any{
		"from": "alice", "to": "bob", "amount": uint64(11),
	}, "alice"), height)
	if res.Code == 0 {
		t.Fatalf("expected overdraft to be rejected")
	}
	if got := a.st.Balance("alice"); got != 10 {
		t.Fatalf("failed send must not move funds: got %d want 10", got)
	}
}

func TestRegisterAccount_RejectsDuplicate(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	registerTestAccount(t, a, height, "alice")

	pub, _ := testEd25519Key("alice")
	res := a.deliverTx(txBytesSigned(t, "auth/register_account", map[string]any{
		"account": "alice",
		"pubKey":  []byte(pub),
	}, "alice"), height)
	if res.Code == 0 {
		t.Fatalf("expected duplicate registration to be rejected")
	}
}

func TestUnknownTxType(t *testing.T) {
	a := newTestApp(t)
	res := a.deliverTx(txBytes(t, "lottery/close_game", map[string]any{}), 1)
	if res.Code == 0 {
		t.Fatalf("expected unknown tx type to be rejected")
	}
}
