//go:build !windows

package ops

import (
	stderrors "errors"
	"syscall"
)

// noFollow makes OpenFile fail on a symlink in the final path component.
// O_CLOEXEC prevents FD leaks across exec.
const noFollow = syscall.O_NOFOLLOW | syscall.O_CLOEXEC

func isSymlinkErr(err error) bool {
	return stderrors.Is(err, syscall.ELOOP)
}
