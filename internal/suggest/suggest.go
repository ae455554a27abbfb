// Package suggest is the move-suggester collaborator: given a move history
// and a strength level it proposes a candidate move for the engine-bound
// seat. Selection is heuristic (material greedy with strength-weighted
// randomness); the coordinator treats the result as opaque.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chess-arena/internal/rules"
)

var ErrNoMove = errors.New("no legal move available")

// Suggester produces one candidate move in UCI notation. Implementations
// must honor ctx cancellation: a canceled suggestion is abandoned, not
// applied.
type Suggester interface {
	Suggest(ctx context.Context, movesUCI []string, strength int) (string, error)
}

var pieceValues = map[nchess.PieceType]int{
	nchess.Pawn:   1,
	nchess.Knight: 3,
	nchess.Bishop: 3,
	nchess.Rook:   5,
	nchess.Queen:  9,
}

type candidate struct {
	uci   string
	score int
}

// Picker is the in-process suggester. ThinkTime adds an artificial, fully
// cancelable thinking delay so engine replies do not land instantly.
type Picker struct {
	ThinkTime time.Duration

	randMu sync.Mutex
	rand   *rand.Rand
}

func NewPicker(thinkTime time.Duration) *Picker {
	return &Picker{
		ThinkTime: thinkTime,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRandomSeed pins the selection randomness, for tests.
func (p *Picker) SetRandomSeed(seed int64) {
	p.randMu.Lock()
	p.rand = rand.New(rand.NewSource(seed))
	p.randMu.Unlock()
}

func (p *Picker) Suggest(ctx context.Context, movesUCI []string, strength int) (string, error) {
	if p.ThinkTime > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.ThinkTime):
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	game, err := rules.Replay(movesUCI)
	if err != nil {
		return "", fmt.Errorf("replay history: %w", err)
	}
	cands := scoreCandidates(game)
	if len(cands) == 0 {
		return "", ErrNoMove
	}
	return p.pick(cands, strength), nil
}

// scoreCandidates rates every legal move by immediate material swing plus a
// mate bonus. Crude on purpose; strength shapes how greedily we follow it.
func scoreCandidates(game *nchess.Game) []candidate {
	pos := game.Position()
	mover := pos.Turn()
	opp := nchess.Black
	if mover == nchess.Black {
		opp = nchess.White
	}
	notation := nchess.UCINotation{}
	valid := game.ValidMoves()

	cands := make([]candidate, 0, len(valid))
	for i := range valid {
		mv := valid[i]
		clone := game.Clone()
		if err := clone.Move(&mv, nil); err != nil {
			continue
		}
		score := materialFor(clone.Position(), mover) - materialFor(clone.Position(), opp)
		switch clone.Outcome() {
		case nchess.NoOutcome:
		case nchess.Draw:
			score -= 1
		default:
			score += 1000 // mate
		}
		cands = append(cands, candidate{
			uci:   strings.ToLower(notation.Encode(pos, &mv)),
			score: score,
		})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score == cands[j].score {
			return cands[i].uci < cands[j].uci
		}
		return cands[i].score > cands[j].score
	})
	return cands
}

// pick narrows the candidate pool by strength (1 = nearly uniform over all
// moves, 20 = always the top move) and rolls a rank-weighted choice within
// the pool.
func (p *Picker) pick(cands []candidate, strength int) string {
	if strength < 1 {
		strength = 1
	}
	if strength > 20 {
		strength = 20
	}
	pool := len(cands) * (21 - strength) / 20
	if pool < 1 {
		pool = 1
	}
	if pool == 1 {
		return cands[0].uci
	}

	total := 0
	for i := 0; i < pool; i++ {
		total += pool - i
	}
	p.randMu.Lock()
	roll := p.rand.Intn(total)
	p.randMu.Unlock()
	cumulative := 0
	for i := 0; i < pool; i++ {
		cumulative += pool - i
		if roll < cumulative {
			return cands[i].uci
		}
	}
	return cands[pool-1].uci
}

func materialFor(pos *nchess.Position, color nchess.Color) int {
	board := pos.Board()
	sum := 0
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := board.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece || piece.Color() != color {
				continue
			}
			sum += pieceValues[piece.Type()]
		}
	}
	return sum
}
