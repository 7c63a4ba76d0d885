// Package naturaltime turns casual English time expressions ("in 20 min",
// "tomorrow at 6pm", "friday", "tonight") into absolute instants.
//
// Parsing is pure: the caller supplies both the reference instant and the
// location the expression should be read in, so results are reproducible and
// testable. A failed parse is a normal outcome, reported as a boolean, while
// an unresolvable time zone is an error.
package naturaltime
