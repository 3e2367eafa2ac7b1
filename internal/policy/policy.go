// Package policy holds the static skip/ok lists.
//
// Both lists are compile-time data, deliberately not configurable at run
// time: changing them is a policy decision that should go through review,
// not a flag.
package policy

// allowList names packages presumed to pass without execution. Entries are
// typically binary-dependency shims whose test suites exercise nothing but
// the artifact download, which the sandbox forbids anyway.
var allowList = map[string]struct{}{
	"WinRPM":        {},
	"Homebrew":      {},
	"Electron":      {},
	"VisualRegress": {},
}

// denyList names packages that are never executed, because their test
// suites are known to hang and there is no per-test timeout fine-grained
// enough to contain them. Deny-listed packages and all of their
// reverse-dependents are Skipped before any worker starts.
var denyList = map[string]struct{}{
	"Gtk":            {},
	"WebDriver":      {},
	"NotebookKernel": {},
	"RealtimeAudio":  {},
}

// Allowed reports whether name is on the allow-list.
func Allowed(name string) bool {
	_, ok := allowList[name]
	return ok
}

// Denied reports whether name is on the deny-list.
func Denied(name string) bool {
	_, ok := denyList[name]
	return ok
}
