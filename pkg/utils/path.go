package utils

import (
	stdpath "path"
	"path/filepath"
	"strings"
)

// FixAndCleanPath turns an inner archive path into the slash separated,
// root relative form used by FileInfo.FileName ("" is the archive root).
func FixAndCleanPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = stdpath.Clean("/" + path)
	return strings.TrimPrefix(path, "/")
}

// IsWithinDir reports whether target resolves to base or somewhere below it.
func IsWithinDir(base, target string) bool {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	absBase = filepath.Clean(absBase)
	absTarget = filepath.Clean(absTarget)
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(filepath.Separator))
}

// SafeJoin joins an archive entry name onto dir and refuses names that would
// escape it.
func SafeJoin(dir, name string) (string, bool) {
	target := filepath.Join(dir, filepath.FromSlash(FixAndCleanPath(name)))
	return target, IsWithinDir(dir, target)
}
