// Package phase derives a project's workflow phase from the presence of
// related records. The phase is recomputed on every read; nothing here is
// persisted except the optional manual override on the project row.
package phase

// Key identifies one stage of the fixed project workflow.
type Key string

const (
	DraftProtocol       Key = "draft_protocol"
	InviteAdvisoryBoard Key = "invite_advisory_board"
	ReferencesScreening Key = "references_screening"
	SummaryWriting      Key = "summary_writing"
	ActionListReview    Key = "action_list_review"
	SynopsisAssembly    Key = "synopsis_assembly"
	FinalChecks         Key = "final_checks"
	Publication         Key = "publication"
)

// Order lists every phase from earliest to latest. Rank is the index here.
var Order = []Key{
	DraftProtocol,
	InviteAdvisoryBoard,
	ReferencesScreening,
	SummaryWriting,
	ActionListReview,
	SynopsisAssembly,
	FinalChecks,
	Publication,
}

var ranks = func() map[Key]int {
	m := make(map[Key]int, len(Order))
	for i, k := range Order {
		m[k] = i
	}
	return m
}()

// Rank returns the position of a key in the workflow order. Unknown keys
// rank 0, so corrupt override data falls back to the earliest phase.
func Rank(k Key) int {
	return ranks[k]
}

// Valid reports whether k is one of the fixed workflow keys.
func Valid(k Key) bool {
	_, ok := ranks[k]
	return ok
}

// Signals captures the record-existence checks the resolver walks through,
// in chain order. Each later signal is only meaningful once the earlier
// ones hold.
type Signals struct {
	ProtocolPresent          bool
	InvitesSent              bool
	AnyAcceptance            bool
	ProtocolFeedbackExists   bool
	ActionListFeedbackExists bool
}

// Compute walks the decision chain and returns the best-effort phase.
// Phases past ActionListReview are never computed; they are reached only
// through a manual override.
func Compute(s Signals) Key {
	if !s.ProtocolPresent {
		return DraftProtocol
	}
	if !s.InvitesSent || !s.AnyAcceptance {
		return InviteAdvisoryBoard
	}
	if !s.ProtocolFeedbackExists {
		return ReferencesScreening
	}
	if !s.ActionListFeedbackExists {
		return SummaryWriting
	}
	return ActionListReview
}

// Resolve combines the computed phase with an optional manual override.
// The override wins only when it does not move the phase backward; an
// empty or unknown override leaves the computed phase in place.
func Resolve(computed Key, manual Key) Key {
	if manual == "" || !Valid(manual) {
		return computed
	}
	if Rank(manual) >= Rank(computed) {
		return manual
	}
	return computed
}
