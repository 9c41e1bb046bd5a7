//go:build windows

package app

import "os/exec"

// openPath opens a file or directory with the shell default handler.
func openPath(path string) error {
	return exec.Command("cmd", "/c", "start", "", path).Start()
}

// openTerminal opens a command prompt in the given directory. The
// candidate list is a Linux concern and is ignored here.
func openTerminal(dir string, _ []string) error {
	cmd := exec.Command("cmd", "/c", "start", "cmd")
	cmd.Dir = dir
	return cmd.Start()
}
