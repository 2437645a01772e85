package space

// Condition tracks how far a structure has been set up. Later conditions
// imply every earlier one.
type Condition int

const (
	CondInit Condition = iota
	CondLists
	CondParams
	CondReady
)

func (c Condition) String() string {
	switch c {
	case CondInit:
		return "not initialized"
	case CondLists:
		return "lists built"
	case CondParams:
		return "parameters need updating"
	case CondReady:
		return "ready"
	default:
		return "unknown"
	}
}

// SetMode selects how SetCondition treats the current condition.
type SetMode int

const (
	// Downgrade lowers the condition, never raises it.
	Downgrade SetMode = iota
	// Upgrade raises the condition, never lowers it.
	Upgrade
	// Force sets the condition unconditionally.
	Force
)

// Apply returns the condition that results from moving c to target under mode.
func (c Condition) Apply(target Condition, mode SetMode) Condition {
	switch mode {
	case Downgrade:
		return min(c, target)
	case Upgrade:
		return max(c, target)
	default:
		return target
	}
}
