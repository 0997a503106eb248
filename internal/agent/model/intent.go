package model

import "strings"

// Intent is the label produced by the classifier for a single turn. The set is
// closed; anything the model returns outside it degrades to IntentGeneral.
type Intent string

const (
	IntentPolicy   Intent = "policy"
	IntentPlanning Intent = "planning"
	IntentBooking  Intent = "booking"
	IntentGeneral  Intent = "general"
)

// Known reports whether the intent is one of the fixed labels.
func (i Intent) Known() bool {
	switch i {
	case IntentPolicy, IntentPlanning, IntentBooking, IntentGeneral:
		return true
	}
	return false
}

// ParseIntent normalises a raw model label into the fixed intent set. Unknown
// labels resolve to IntentGeneral; the second return reports whether the raw
// label was in-set so callers can log degraded classifications.
func ParseIntent(raw string) (Intent, bool) {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentPolicy:
		return IntentPolicy, true
	case IntentPlanning:
		return IntentPlanning, true
	case IntentBooking:
		return IntentBooking, true
	case IntentGeneral:
		return IntentGeneral, true
	}
	return IntentGeneral, false
}
