//go:build linux

package app

import (
	"fmt"
	"os/exec"
)

// openPath opens a file or directory with the desktop default handler.
func openPath(path string) error {
	return exec.Command("xdg-open", path).Start()
}

// openTerminal launches the first terminal emulator on PATH from the
// configured candidates, with the given directory as working directory.
func openTerminal(dir string, candidates []string) error {
	for _, term := range candidates {
		bin, err := exec.LookPath(term)
		if err != nil {
			continue
		}
		cmd := exec.Command(bin)
		cmd.Dir = dir
		if err := cmd.Start(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no terminal emulator found (tried %d candidates)", len(candidates))
}
