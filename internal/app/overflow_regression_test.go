package app

import (
	"testing"

	"onchainlotto/chain/internal/oclcrypto"
)

func TestOverflow_BankSendCreditOverflowRollsBackDebit(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	registerTestAccount(t, a, height, "alice")

	a.st.Accounts["alice"] = 100
	a.st.Accounts["bob"] = ^uint64(0)

	res := a.deliverTx(txBytesSigned(t, "bank/send", map[string]any{
		"from":   "alice",
		"to":     "bob",
		"amount": uint64(1),
	}, "alice"), height)
	if res.Code == 0 {
		t.Fatalf("expected overflow failure")
	}
	if got := a.st.Balance("alice"); got != 100 {
		t.Fatalf("alice balance mutated on failed overflow send: %d", got)
	}
	if got := a.st.Balance("bob"); got != ^uint64(0) {
		t.Fatalf("bob balance mutated on failed overflow send: %d", got)
	}
}

func TestOverflow_PotOverflowRejectsWagerWithoutDebit(t *testing.T) {
	const height = int64(1)
	a := newTestApp(t)

	gameID := createTestGame(t, a, height, "op", map[string]any{"maxValue": testMaxValue, "stake": uint64(2)})
	mustOk(t, a.deliverTx(txBytesSigned(t, "lottery/commit", map[string]any{
		"gameId": gameID,
		"digest": oclcrypto.CommitmentDigest(testSecret, testValue),
	}, "op"), height))

	mintTestTokens(t, a, height, "alice", 10)
	game(t, a, gameID).Pot = ^uint64(0) - 1

	res := placeWager(t, a, height, gameID, "alice", 1)
	if res.Code == 0 {
		t.Fatalf("expected pot overflow failure")
	}
	if got := a.st.Balance("alice"); got != 10 {
		t.Fatalf("failed wager debited the caller: %d", got)
	}
	if got := len(game(t, a, gameID).Wagers[1]); got != 0 {
		t.Fatalf("failed wager recorded: %d entries", got)
	}
}
