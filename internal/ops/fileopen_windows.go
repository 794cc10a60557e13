//go:build windows

package ops

// noFollow is zero on Windows, where O_NOFOLLOW does not exist. ValidateExportDir
// still rejects a symlinked directory before any file is opened.
const noFollow = 0

func isSymlinkErr(error) bool {
	return false
}
