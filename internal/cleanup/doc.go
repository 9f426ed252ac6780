// Package cleanup plans and executes bulk removal of cached and generated
// artifacts.
//
// Every run is two-phase: Preview walks the requested targets and returns the
// exact paths and byte counts that would go, Execute removes a previously
// built plan. Dry runs are therefore just a Preview that is never executed.
// Dot-entries (staging and lock directories) and the filename mapping document
// are never candidates.
package cleanup
