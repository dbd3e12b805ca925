package domain

import "fmt"

// Verdict is the outcome of evaluating a URL against the pattern lists.
type Verdict uint8

const (
	// VerdictNone means neither list matched.
	VerdictNone Verdict = iota
	// VerdictAllow means an allow entry matched; allow wins over block.
	VerdictAllow
	// VerdictBlock means a block entry matched and no allow entry did.
	VerdictBlock
)

func (v Verdict) String() string {
	switch v {
	case VerdictNone:
		return "none"
	case VerdictAllow:
		return "allow"
	case VerdictBlock:
		return "block"
	default:
		return fmt.Sprintf("Verdict(%d)", v)
	}
}

// Decision is a value-type verdict plus the entry that produced it.
type Decision struct {
	Verdict Verdict
	Pattern string
}

// Blocked is a convenience accessor.
func (d Decision) Blocked() bool { return d.Verdict == VerdictBlock }

// NoDecision returns a decision that matched nothing.
func NoDecision() Decision { return Decision{Verdict: VerdictNone} }
