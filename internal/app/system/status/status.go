// Package status holds the account status values for operators.
package status

// Operator account states. A disabled operator cannot sign in and is
// signed out on the next request.
const (
	Active   = "active"
	Disabled = "disabled"
)

var labels = map[string]string{
	Active:   "有効",
	Disabled: "無効",
}

// IsValid returns true if s is a recognized status value.
func IsValid(s string) bool {
	_, ok := labels[s]
	return ok
}

// Default returns the status given to new operators.
func Default() string {
	return Active
}

// Label returns the display label for s, or s itself when unknown.
func Label(s string) string {
	if l, ok := labels[s]; ok {
		return l
	}
	return s
}
