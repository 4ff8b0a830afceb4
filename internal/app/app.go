package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainlotto/chain/internal/codec"
	"onchainlotto/chain/internal/oclcrypto"
	"onchainlotto/chain/internal/state"
)

const (
	AppVersion uint64 = 1
)

type OCLApp struct {
	*abci.BaseApplication

	home string

	mu       sync.Mutex
	st       *state.State
	lastHash []byte
}

func New(home string) (*OCLApp, error) {
	appHome := filepath.Join(home, "app")
	st, err := state.Load(appHome)
	if err != nil {
		return nil, err
	}
	a := &OCLApp{
		BaseApplication: abci.NewBaseApplication(),
		home:            home,
		st:              st,
		lastHash:        st.AppHash(),
	}
	return a, nil
}

func (a *OCLApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "OCL (v0)",
		Version:          "v0",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *OCLApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	_, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return &abci.CheckTxResponse{Code: 1, Log: err.Error()}, nil
	}
	// v0: only structural validation; auth/state checks run at delivery.
	return &abci.CheckTxResponse{Code: 0}, nil
}

func (a *OCLApp) InitChain(_ context.Context, _ *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	// v0: no special genesis handling.
	return &abci.InitChainResponse{}, nil
}

func (a *OCLApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.Height = req.Height

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(txBytes, req.Height)
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *OCLApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	// Persist after each block for devnet durability.
	appHome := filepath.Join(a.home, "app")
	if err := a.st.Save(appHome); err != nil {
		// CometBFT expects Commit to not crash; return error so node halts loudly.
		return nil, err
	}
	return &abci.CommitResponse{}, nil
}

// deliverTx executes one tx against a staged copy of state and installs the
// copy only on success. A failing tx therefore has no effect at all, nonce
// accounting included.
func (a *OCLApp) deliverTx(txBytes []byte, height int64) *abci.ExecTxResult {
	staged, err := a.st.Clone()
	if err != nil {
		return &abci.ExecTxResult{Code: 1, Log: fmt.Sprintf("stage state: %v", err)}
	}
	res := execTx(staged, txBytes)
	if res.Code == 0 {
		staged.Height = height
		a.st = staged
	}
	return res
}

func execTx(st *state.State, txBytes []byte) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return &abci.ExecTxResult{Code: 1, Log: err.Error()}
	}

	switch env.Type {
	case "bank/mint":
		// v0 devnet faucet; unsigned.
		var msg codec.BankMintTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad bank/mint value"}
		}
		if msg.To == "" || msg.Amount == 0 {
			return &abci.ExecTxResult{Code: 1, Log: "missing to/amount"}
		}
		if err := st.Credit(msg.To, msg.Amount); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		return okEvent("BankMinted", map[string]string{
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})

	case "bank/send":
		var msg codec.BankSendTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad bank/send value"}
		}
		if msg.From == "" || msg.To == "" || msg.Amount == 0 {
			return &abci.ExecTxResult{Code: 1, Log: "missing from/to/amount"}
		}
		if env.Signer != msg.From {
			return &abci.ExecTxResult{Code: 1, Log: fmt.Sprintf("tx signer mismatch: signer=%q want=%q", env.Signer, msg.From)}
		}
		if err := requireAccountAuth(st, env); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		if err := bumpNonce(st, env.Signer, env.Nonce); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		if err := st.Debit(msg.From, msg.Amount); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		if err := st.Credit(msg.To, msg.Amount); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		return okEvent("BankSent", map[string]string{
			"from":   msg.From,
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})

	case "auth/register_account":
		var msg codec.AuthRegisterAccountTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad auth/register_account value"}
		}
		if err := requireRegisterAccountAuth(env, msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		if len(st.AccountKeys[msg.Account]) != 0 {
			return &abci.ExecTxResult{Code: 1, Log: fmt.Sprintf("account %q already registered", msg.Account)}
		}
		if err := bumpNonce(st, env.Signer, env.Nonce); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: err.Error()}
		}
		st.AccountKeys[msg.Account] = append([]byte(nil), msg.PubKey...)
		return okEvent("AccountRegistered", map[string]string{
			"account": msg.Account,
		})

	case "lottery/create_game":
		var msg codec.LotteryCreateGameTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad lottery/create_game value"}
		}
		caller, fail := authenticatedCaller(st, env)
		if fail != nil {
			return fail
		}
		return lotteryCreateGame(st, caller, msg)

	case "lottery/commit":
		var msg codec.LotteryCommitTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad lottery/commit value"}
		}
		caller, fail := authenticatedCaller(st, env)
		if fail != nil {
			return fail
		}
		return lotteryCommit(st, caller, msg)

	case "lottery/place_wager":
		var msg codec.LotteryPlaceWagerTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad lottery/place_wager value"}
		}
		caller, fail := authenticatedCaller(st, env)
		if fail != nil {
			return fail
		}
		return lotteryPlaceWager(st, caller, msg)

	case "lottery/reveal":
		var msg codec.LotteryRevealTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad lottery/reveal value"}
		}
		caller, fail := authenticatedCaller(st, env)
		if fail != nil {
			return fail
		}
		return lotteryReveal(st, caller, msg)

	case "lottery/restart":
		var msg codec.LotteryRestartTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return &abci.ExecTxResult{Code: 1, Log: "bad lottery/restart value"}
		}
		caller, fail := authenticatedCaller(st, env)
		if fail != nil {
			return fail
		}
		return lotteryRestart(st, caller, msg)

	default:
		return &abci.ExecTxResult{Code: 1, Log: "unknown tx type: " + env.Type}
	}
}

// authenticatedCaller verifies the envelope signature and nonce and returns
// the caller identity game operations trust.
func authenticatedCaller(st *state.State, env codec.TxEnvelope) (string, *abci.ExecTxResult) {
	if err := requireAccountAuth(st, env); err != nil {
		return "", &abci.ExecTxResult{Code: 1, Log: err.Error()}
	}
	if err := bumpNonce(st, env.Signer, env.Nonce); err != nil {
		return "", &abci.ExecTxResult{Code: 1, Log: err.Error()}
	}
	return env.Signer, nil
}

func (a *OCLApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Paths:
	// - /account/<addr>
	// - /games
	// - /game/<id>
	// - /game/<id>/digest | value | secret | results
	path := strings.TrimSpace(req.Path)
	switch {
	case path == "/games":
		ids := make([]uint64, 0, len(a.st.Games))
		for id := range a.st.Games {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		b, _ := json.Marshal(ids)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/account/"):
		addr := strings.TrimPrefix(path, "/account/")
		bal := a.st.Balance(addr)
		b, _ := json.Marshal(map[string]any{"addr": addr, "balance": bal})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/game/"):
		rest := strings.TrimPrefix(path, "/game/")
		idRaw, field, _ := strings.Cut(rest, "/")
		id, err := strconv.ParseUint(idRaw, 10, 64)
		if err != nil {
			return &abci.QueryResponse{Code: 1, Log: "invalid game id", Height: a.st.Height}, nil
		}
		g, ok := a.st.Games[id]
		if !ok {
			return &abci.QueryResponse{Code: 1, Log: "game not found", Height: a.st.Height}, nil
		}
		return a.queryGame(g, field), nil
	default:
		return &abci.QueryResponse{Code: 1, Log: "unknown query path", Height: a.st.Height}, nil
	}
}

func (a *OCLApp) queryGame(g *state.Game, field string) *abci.QueryResponse {
	queryFail := func(err RoundError) *abci.QueryResponse {
		return &abci.QueryResponse{Code: 1, Codespace: err.Code(), Log: err.Error(), Height: a.st.Height}
	}

	switch field {
	case "":
		b, _ := json.Marshal(gameView(g))
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}
	case "digest":
		if err := requireCommitted(g); err != nil {
			return queryFail(err)
		}
		b, _ := json.Marshal(map[string]any{"digest": oclcrypto.BytesToHex(g.Digest)})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}
	case "value":
		if err := requireRevealed(g); err != nil {
			return queryFail(err)
		}
		b, _ := json.Marshal(map[string]any{"value": g.Value})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}
	case "secret":
		if err := requireRevealed(g); err != nil {
			return queryFail(err)
		}
		b, _ := json.Marshal(map[string]any{"secret": g.Secret})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}
	case "results":
		if err := requireRevealed(g); err != nil {
			return queryFail(err)
		}
		b, _ := json.Marshal(map[string]any{
			"value":        g.Value,
			"participants": g.Wagers[g.Value],
		})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}
	default:
		return &abci.QueryResponse{Code: 1, Log: "unknown game query field", Height: a.st.Height}
	}
}

// gameView is the public per-game query shape. Value and secret are elided
// until revealed; the registry is summarized as per-category counts (full
// participant lists for the winning category come from /results).
func gameView(g *state.Game) map[string]any {
	counts := make([]int, len(g.Wagers))
	for k := range g.Wagers {
		counts[k] = len(g.Wagers[k])
	}
	v := map[string]any{
		"id":          g.ID,
		"creator":     g.Creator,
		"operator":    g.Operator,
		"maxValue":    g.MaxValue,
		"stake":       g.Stake,
		"pot":         g.Pot,
		"committed":   g.Committed,
		"revealed":    g.Revealed,
		"wagerCounts": counts,
	}
	if g.Label != "" {
		v["label"] = g.Label
	}
	if g.Committed {
		v["digest"] = oclcrypto.BytesToHex(g.Digest)
	}
	if g.Revealed {
		v["value"] = g.Value
		v["secret"] = g.Secret
	}
	return v
}

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return &abci.ExecTxResult{
		Code:   0,
		Events: []abci.Event{ev},
	}
}
