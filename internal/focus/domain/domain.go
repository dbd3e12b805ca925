// Package domain holds the pure value types shared by every focusgate layer:
// user pattern lists, declarative rules, block decisions, tabs, and the UI
// control protocol. Nothing here performs I/O.
package domain

// Lists is the user's pair of pattern lists, in insertion order.
type Lists struct {
	Block []string `json:"blockedWebsites"`
	Allow []string `json:"allowWebsites"`
}

// Clone returns a deep copy so callers can hand lists across goroutines.
func (l Lists) Clone() Lists {
	return Lists{Block: cloneStrings(l.Block), Allow: cloneStrings(l.Allow)}
}

// Empty reports whether both lists are empty.
func (l Lists) Empty() bool {
	return len(l.Block) == 0 && len(l.Allow) == 0
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
