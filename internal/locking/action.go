package locking

import "fmt"

// Input identifies one lockable resource within a merchant.
type Input struct {
	UniqueLockingKey    string
	APIIdentifier       string
	OverrideLockRetries *uint32
}

// KeyFor resolves the redis key for this input under merchantID.
func (i Input) KeyFor(merchantID string) string {
	return fmt.Sprintf("%s_%s_%s", merchantID, i.APIIdentifier, i.UniqueLockingKey)
}

type ActionKind string

const (
	KindHold          ActionKind = "hold"
	KindHoldMultiple  ActionKind = "hold_multiple"
	KindQueueWithOk   ActionKind = "queue_with_ok"
	KindDrop          ActionKind = "drop"
	KindNotApplicable ActionKind = "not_applicable"
)

// Action is what a request wants from the lock manager before it runs.
type Action struct {
	Kind   ActionKind
	Inputs []Input
}

func Hold(input Input) Action {
	return Action{Kind: KindHold, Inputs: []Input{input}}
}

func HoldMultiple(inputs ...Input) Action {
	return Action{Kind: KindHoldMultiple, Inputs: inputs}
}

func QueueWithOk() Action   { return Action{Kind: KindQueueWithOk} }
func Drop() Action          { return Action{Kind: KindDrop} }
func NotApplicable() Action { return Action{Kind: KindNotApplicable} }

// Holds reports whether the action acquires any key.
func (a Action) Holds() bool {
	return a.Kind == KindHold || a.Kind == KindHoldMultiple
}

// retries picks the first override among inputs, falling back to def.
func (a Action) retries(def uint32) uint32 {
	for _, input := range a.Inputs {
		if input.OverrideLockRetries != nil {
			return *input.OverrideLockRetries
		}
	}
	return def
}

func (a Action) keys(merchantID string) []string {
	keys := make([]string, 0, len(a.Inputs))
	seen := make(map[string]struct{}, len(a.Inputs))
	for _, input := range a.Inputs {
		key := input.KeyFor(merchantID)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
