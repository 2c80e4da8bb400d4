package attendance

import (
	"rfidattend/internal/jalali"
)

// Action is the direction of a scan.
type Action string

const (
	ActionEnter Action = "Enter"
	ActionExit  Action = "Exit"
)

// Record is one immutable ledger entry. Seq is assigned by the Ledger and is
// the authoritative insertion order.
type Record struct {
	Seq    int64           `json:"seq"`
	ID     string          `json:"id,omitempty"`
	TagID  string          `json:"rfid"`
	Name   string          `json:"name"`
	Action Action          `json:"action"`
	Time   jalali.DateTime `json:"time"`
}

// Classify decides the action of a new scan of tagID: Exit when the tag's most
// recent record (highest Seq, later position on ties) is an Enter, otherwise Enter.
func Classify(tagID string, ledger []Record) Action {
	var (
		last  Record
		found bool
	)
	for _, rec := range ledger {
		if rec.TagID != tagID {
			continue
		}
		if !found || rec.Seq >= last.Seq {
			last, found = rec, true
		}
	}
	if found && last.Action == ActionEnter {
		return ActionExit
	}
	return ActionEnter
}
