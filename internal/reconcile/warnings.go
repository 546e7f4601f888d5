package reconcile

import "fmt"

// Warnings accumulates non-fatal conditions hit while computing or
// executing a plan. Warnings are reported at the end of the run; they never
// abort it.
type Warnings []string

// Addf records a formatted warning.
func (w *Warnings) Addf(format string, args ...any) {
	*w = append(*w, fmt.Sprintf(format, args...))
}
