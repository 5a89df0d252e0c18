//go:build windows

package selector

import "fmt"

// Wait is not implemented on Windows: the worker loop's select-based turn
// requires a readiness-selection primitive over raw socket descriptors,
// which this package only provides via select(2)/poll(2) on unix. A
// Windows build of the worker needs a WSAPoll-backed Selector; until one is
// written, Wait fails fast rather than silently spinning.
func (s *Selector) Wait() error {
	return fmt.Errorf("selector: Wait is not implemented on windows")
}
