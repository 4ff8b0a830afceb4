package state

// DefaultMaxValue bounds the revealed outcome and every wager category when
// a game is created without an explicit maxValue.
const DefaultMaxValue uint64 = 255

// Game holds one commit-reveal wager round: the operator publishes a digest
// binding a hidden (secret, value) pair, participants wager on candidate
// values while the digest is the only public information, the operator opens
// the commitment, and the round is finally cleared by restart.
//
// Phase is carried by the two flags:
//
//	!Committed && !Revealed  uncommitted (initial, and the restart target)
//	Committed && !Revealed   betting window open
//	Committed && Revealed    opened; results queryable, restart allowed
//
// A game whose operator can no longer produce a matching opening stays in
// the committed phase forever; there is deliberately no recovery path.
type Game struct {
	ID       uint64 `json:"id"`
	Creator  string `json:"creator"`
	Operator string `json:"operator"`
	Label    string `json:"label,omitempty"`

	// MaxValue is fixed at creation; values and categories run 0..MaxValue.
	MaxValue uint64 `json:"maxValue"`

	// Stake, when non-zero, is escrowed from each wagerer into Pot.
	Stake uint64 `json:"stake,omitempty"`
	Pot   uint64 `json:"pot,omitempty"`

	Committed bool   `json:"committed"`
	Digest    []byte `json:"digest,omitempty"` // 32-byte sha256 commitment

	Revealed bool   `json:"revealed"`
	Value    uint64 `json:"value"`
	Secret   uint64 `json:"secret"`

	// Wagers[k] lists the callers who wagered on category k, in acceptance
	// order. Always MaxValue+1 entries. Duplicates are kept as-is.
	Wagers [][]string `json:"wagers"`
}

func NewGame(id uint64, creator, operator, label string, maxValue, stake uint64) *Game {
	return &Game{
		ID:       id,
		Creator:  creator,
		Operator: operator,
		Label:    label,
		MaxValue: maxValue,
		Stake:    stake,
		Wagers:   emptyWagers(maxValue),
	}
}

// ClearRound resets the game to the uncommitted phase. The wager registry is
// replaced wholesale; this is the only place wager data is dropped. Pot and
// identity fields survive across rounds.
func (g *Game) ClearRound() {
	g.Committed = false
	g.Digest = nil
	g.Revealed = false
	g.Value = 0
	g.Secret = 0
	g.Wagers = emptyWagers(g.MaxValue)
}

func (g *Game) normalize() {
	if uint64(len(g.Wagers)) != g.MaxValue+1 {
		w := emptyWagers(g.MaxValue)
		copy(w, g.Wagers)
		g.Wagers = w
	}
	for k := range g.Wagers {
		if g.Wagers[k] == nil {
			g.Wagers[k] = []string{}
		}
	}
}

func emptyWagers(maxValue uint64) [][]string {
	w := make([][]string, maxValue+1)
	for k := range w {
		w[k] = []string{}
	}
	return w
}
