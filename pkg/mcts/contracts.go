package mcts

import "errors"

// State is an opaque, clonable game position. The core never inspects it;
// it only ever clones it (once per simulation) and hands it to Rules.
type State interface {
	Clone() State
}

// Rules is the consumed contract for the external rules engine: legal
// moves, playing a move, superko detection, scoring, hashing, and the
// bits of game-clock bookkeeping the root controller needs. See spec §6.
type Rules interface {
	LegalMoves(state State, color Color) []Move
	// Play mutates state in place, applying move. It returns ErrIllegalMove
	// (or a wrapped variant of it) if the move cannot be played.
	Play(state State, move Move) error
	// Superko reports whether the position just reached by Play exactly
	// repeats an earlier one.
	Superko(state State) bool
	// FinalScore is positive when PlayerA wins, negative when PlayerB
	// wins, zero on a draw.
	FinalScore(state State) float64
	Hash(state State) uint64
	Passes(state State) int
	MoveNum(state State) int
	ToMove(state State) Color
	// BoardIntersections is the board size used to size evaluator policy
	// vectors (N intersections + one trailing pass slot, per spec §6).
	BoardIntersections(state State) int
	// PolicyIndex returns move's slot in a flat policy vector requested
	// under symmetry. The core asks for this instead of rotating a 2-D
	// array itself, since board geometry is the rules engine's concern,
	// not the search engine's (spec §4.E).
	PolicyIndex(state State, move Move, symmetry Symmetry) int
}

// Evaluator is the consumed contract for the asynchronous batched
// policy-value network. Submit must not block: it enqueues state for
// batching and returns immediately; callback runs later, on whatever
// goroutine the evaluator chooses, exactly once, with either a result or
// a non-nil error.
type Evaluator interface {
	Submit(state State, symmetry Symmetry, callback func(NetResult, error))
	Pending() int
	EstimatedCacheSize() int64
	ResizeCache(n int)
}

var (
	// ErrIllegalMove is returned by Rules.Play when a move cannot be
	// played in the given state.
	ErrIllegalMove = errors.New("mcts: illegal move")
	// ErrInfeasibleConfig is returned synchronously by Config setters
	// when a limit cannot be satisfied (spec §7, "Configuration
	// infeasible").
	ErrInfeasibleConfig = errors.New("mcts: infeasible configuration")
	// ErrTreeExhausted names the tree-size cap condition. It is never
	// returned from Think or Ponder — it is surfaced only through
	// Engine.TreeStats().StopReason (StopTreeSize) and a zerolog warning
	// event logged at the moment the cap is hit (spec §7, "reported in
	// analysis text only").
	ErrTreeExhausted = errors.New("mcts: tree-size cap reached")
)
