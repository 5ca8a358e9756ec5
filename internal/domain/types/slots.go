package types

// SlotState is the life stage of one slot.
type SlotState int

const (
	SlotEmpty SlotState = iota
	SlotDraft
	SlotCommitted
)

func (s SlotState) String() string {
	switch s {
	case SlotDraft:
		return "draft"
	case SlotCommitted:
		return "committed"
	default:
		return "empty"
	}
}

// Slot is one of the fixed candidate positions.
type Slot struct {
	Index  int       `json:"index"`
	Target Identity  `json:"target,omitempty"`
	State  SlotState `json:"state"`
	Aux    string    `json:"aux,omitempty"`
}

// Occupied reports whether the slot holds a target.
func (s Slot) Occupied() bool { return s.State != SlotEmpty && s.Target != "" }

// Draft is the advisory local copy of an uncommitted selection.
type Draft struct {
	Index  int      `json:"index"`
	Target Identity `json:"target"`
	Aux    string   `json:"aux,omitempty"`
}
