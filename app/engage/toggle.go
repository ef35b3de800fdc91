// Package engage implements the idempotent membership toggle that backs
// post likes and comment votes. The functions here are pure: callers are
// responsible for applying the result inside a single atomic store
// operation per entity.
package engage

// Result reports the state of a membership set after a toggle.
type Result struct {
	Active bool `json:"active"`
	Count  int  `json:"count"`
}

// Toggle flips actorID's membership in the set: present is removed,
// absent is added. Returns the updated set and the resulting state.
// Calling it twice in succession with the same actor is a net no-op.
func Toggle(set []string, actorID string) ([]string, Result) {
	for i, id := range set {
		if id == actorID {
			set = append(set[:i], set[i+1:]...)
			return set, Result{Active: false, Count: len(set)}
		}
	}
	set = append(set, actorID)
	return set, Result{Active: true, Count: len(set)}
}

// Drifted reports whether a cached counter disagrees with the set it is
// supposed to project. The set is the source of truth; repair is
// counter = len(set).
func Drifted(set []string, count int) bool {
	return count != len(set)
}
