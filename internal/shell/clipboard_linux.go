//go:build linux

package shell

import "fmt"

// writeClipboard is unavailable on Linux, where the clipboard library needs X11 through cgo.
func writeClipboard(_ string) error {
	return fmt.Errorf("clipboard not available on this platform (Linux without X11)")
}
