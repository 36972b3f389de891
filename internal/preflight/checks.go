package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies the directory exists (creating it when
// missing) and is writable by the current user.
func CheckDirectoryAccess(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "path not configured"}
	}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("cannot create %s: %v", path, err)}
		}
	case err != nil:
		return Result{Name: name, Detail: fmt.Sprintf("stat %s: %v", path, err)}
	case !info.IsDir():
		return Result{Name: name, Detail: fmt.Sprintf("%s is not a directory", path)}
	}

	if err := unix.Access(path, unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s not writable: %v", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}
