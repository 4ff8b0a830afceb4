package app

import (
	"bytes"
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainlotto/chain/internal/codec"
	"onchainlotto/chain/internal/oclcrypto"
	"onchainlotto/chain/internal/state"
)

// Round guards. Each is a pure precondition check: it reads the game and
// returns the matching RoundError, or nil. Handlers evaluate every guard
// before touching state, so a failing operation has no effect.

func requireOperator(g *state.Game, caller string) RoundError {
	if caller != g.Operator {
		return &UnauthorizedError{Caller: caller}
	}
	return nil
}

func requireNotCommitted(g *state.Game) RoundError {
	if g.Committed {
		return &AlreadyCommittedError{Digest: g.Digest}
	}
	return nil
}

func requireCommitted(g *state.Game) RoundError {
	if !g.Committed {
		return &NotCommittedYetError{}
	}
	return nil
}

func requireNotRevealed(g *state.Game) RoundError {
	if g.Revealed {
		return &AlreadyRevealedError{Value: g.Value, Secret: g.Secret}
	}
	return nil
}

func requireRevealed(g *state.Game) RoundError {
	if !g.Revealed {
		return &NotRevealedYetError{}
	}
	return nil
}

func roundFail(err RoundError) *abci.ExecTxResult {
	return &abci.ExecTxResult{Code: 1, Codespace: err.Code(), Log: err.Error()}
}

func findGame(st *state.State, id uint64) (*state.Game, *abci.ExecTxResult) {
	g := st.Games[id]
	if g == nil {
		return nil, &abci.ExecTxResult{Code: 1, Log: "game not found"}
	}
	return g, nil
}

func lotteryCreateGame(st *state.State, caller string, msg codec.LotteryCreateGameTx) *abci.ExecTxResult {
	maxValue := msg.MaxValue
	if maxValue == 0 {
		maxValue = state.DefaultMaxValue
	}
	if maxValue > state.DefaultMaxValue {
		return &abci.ExecTxResult{Code: 1, Log: fmt.Sprintf("maxValue must be <= %d", state.DefaultMaxValue)}
	}
	operator := msg.Operator
	if operator == "" {
		operator = caller
	}

	id := st.NextGameID
	st.NextGameID++
	st.Games[id] = state.NewGame(id, caller, operator, msg.Label, maxValue, msg.Stake)

	return okEvent("GameCreated", map[string]string{
		"gameId":   fmt.Sprintf("%d", id),
		"creator":  caller,
		"operator": operator,
		"maxValue": fmt.Sprintf("%d", maxValue),
		"stake":    fmt.Sprintf("%d", msg.Stake),
	})
}

func lotteryCommit(st *state.State, caller string, msg codec.LotteryCommitTx) *abci.ExecTxResult {
	g, fail := findGame(st, msg.GameID)
	if fail != nil {
		return fail
	}
	if err := requireOperator(g, caller); err != nil {
		return roundFail(err)
	}
	if err := requireNotCommitted(g); err != nil {
		return roundFail(err)
	}
	if len(msg.Digest) != oclcrypto.DigestSize {
		return &abci.ExecTxResult{Code: 1, Log: fmt.Sprintf("digest must be %d bytes", oclcrypto.DigestSize)}
	}

	g.Digest = append([]byte(nil), msg.Digest...)
	g.Committed = true

	return okEvent("OutcomeCommitted", map[string]string{
		"gameId": fmt.Sprintf("%d", msg.GameID),
		"digest": oclcrypto.BytesToHex(g.Digest),
	})
}

func lotteryPlaceWager(st *state.State, caller string, msg codec.LotteryPlaceWagerTx) *abci.ExecTxResult {
	g, fail := findGame(st, msg.GameID)
	if fail != nil {
		return fail
	}
	// Open to any caller while the betting window is open; no operator check.
	if err := requireCommitted(g); err != nil {
		return roundFail(err)
	}
	if err := requireNotRevealed(g); err != nil {
		return roundFail(err)
	}
	if msg.Category > g.MaxValue {
		return roundFail(&InvalidWagerCategoryError{Category: msg.Category, Max: g.MaxValue})
	}

	if g.Stake > 0 {
		if g.Pot > ^uint64(0)-g.Stake {
			return &abci.ExecTxResult{Code: 1, Log: fmt.Sprintf("pot overflow: have=%d add=%d", g.Pot, g.Stake)}
		}
		if err := st.Debit(caller, g.Stake); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		g.Pot += g.Stake
	}
	g.Wagers[msg.Category] = append(g.Wagers[msg.Category], caller)

	return okEvent("WagerPlaced", map[string]string{
		"gameId":   fmt.Sprintf("%d", msg.GameID),
		"category": fmt.Sprintf("%d", msg.Category),
		"player":   caller,
		"stake":    fmt.Sprintf("%d", g.Stake),
	})
}

func lotteryReveal(st *state.State, caller string, msg codec.LotteryRevealTx) *abci.ExecTxResult {
	g, fail := findGame(st, msg.GameID)
	if fail != nil {
		return fail
	}
	if err := requireOperator(g, caller); err != nil {
		return roundFail(err)
	}
	if err := requireCommitted(g); err != nil {
		return roundFail(err)
	}
	if err := requireNotRevealed(g); err != nil {
		return roundFail(err)
	}
	if msg.Value > g.MaxValue {
		return roundFail(&InvalidRevealedValueError{Value: msg.Value, Max: g.MaxValue})
	}
	// The binding check: recompute the digest from the claimed opening and
	// compare against the committed one. Checked last, before any write, so a
	// mismatch leaves the round untouched.
	if !bytes.Equal(oclcrypto.CommitmentDigest(msg.Secret, msg.Value), g.Digest) {
		return roundFail(&MismatchedRevealError{Digest: g.Digest, Secret: msg.Secret, Value: msg.Value})
	}

	g.Value = msg.Value
	g.Secret = msg.Secret
	g.Revealed = true

	return okEvent("OutcomeRevealed", map[string]string{
		"gameId": fmt.Sprintf("%d", msg.GameID),
		"value":  fmt.Sprintf("%d", msg.Value),
		"secret": fmt.Sprintf("%d", msg.Secret),
	})
}

func lotteryRestart(st *state.State, caller string, msg codec.LotteryRestartTx) *abci.ExecTxResult {
	g, fail := findGame(st, msg.GameID)
	if fail != nil {
		return fail
	}
	if err := requireOperator(g, caller); err != nil {
		return roundFail(err)
	}
	if err := requireRevealed(g); err != nil {
		return roundFail(err)
	}

	g.ClearRound()

	return okEvent("RoundRestarted", map[string]string{
		"gameId": fmt.Sprintf("%d", msg.GameID),
	})
}
