//go:build darwin

package app

import "os/exec"

// openPath opens a file or directory with the Finder default handler.
func openPath(path string) error {
	return exec.Command("open", path).Start()
}

// openTerminal opens Terminal.app in the given directory. The candidate
// list is a Linux concern and is ignored here.
func openTerminal(dir string, _ []string) error {
	return exec.Command("open", "-a", "Terminal", dir).Start()
}
