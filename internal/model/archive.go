package model

import (
	stdpath "path"
	"path/filepath"
	"strings"
)

// keys of ArchiveInfo.Properties understood by the bundled providers
const (
	PropPassword          = "password"
	PropEncryption        = "encryption"
	PropCompressionMethod = "compression_method"
	PropSplitSize         = "split_size"
)

const DefaultCompressionLevel = 6

// ArchiveInfo identifies one archive file on disk and carries the format
// specific settings providers need to read or write it.
type ArchiveInfo struct {
	Path             string         `json:"path"`
	Format           string         `json:"format"`
	CompressionLevel int            `json:"compression_level"`
	Properties       map[string]any `json:"properties,omitempty"`
}

// NewArchiveInfo synthesizes the default info for a bare path. Passing the
// result to a provider is equivalent to passing only the path.
func NewArchiveInfo(path string) *ArchiveInfo {
	return &ArchiveInfo{
		Path:             path,
		Format:           FormatFromPath(path),
		CompressionLevel: DefaultCompressionLevel,
		Properties:       make(map[string]any),
	}
}

func (a *ArchiveInfo) Clone() *ArchiveInfo {
	if a == nil {
		return nil
	}
	c := *a
	c.Properties = make(map[string]any, len(a.Properties))
	for k, v := range a.Properties {
		c.Properties[k] = v
	}
	return &c
}

// Level returns the compression level clamped to 0-9.
func (a *ArchiveInfo) Level() int {
	switch {
	case a.CompressionLevel < 0:
		return 0
	case a.CompressionLevel > 9:
		return 9
	}
	return a.CompressionLevel
}

func (a *ArchiveInfo) SetProperty(key string, value any) {
	if a.Properties == nil {
		a.Properties = make(map[string]any)
	}
	a.Properties[key] = value
}

func (a *ArchiveInfo) GetString(key string) string {
	if a == nil || a.Properties == nil {
		return ""
	}
	if s, ok := a.Properties[key].(string); ok {
		return s
	}
	return ""
}

func (a *ArchiveInfo) GetInt64(key string) int64 {
	if a == nil || a.Properties == nil {
		return 0
	}
	switch v := a.Properties[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func (a *ArchiveInfo) Password() string {
	return a.GetString(PropPassword)
}

func (a *ArchiveInfo) Name() string {
	return filepath.Base(a.Path)
}

var formatAliases = map[string]string{
	"tgz":  "tar.gz",
	"tbz":  "tar.bz2",
	"tbz2": "tar.bz2",
	"txz":  "tar.xz",
	"tzst": "tar.zst",
}

// FormatFromPath guesses the format tag from the file name, preferring the
// compound "tar.<compressor>" form over the bare compressor suffix.
func FormatFromPath(path string) string {
	name := strings.ToLower(stdpath.Base(filepath.ToSlash(path)))
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return ""
	}
	last := parts[len(parts)-1]
	if isVolumeSuffix(last) && len(parts) >= 3 {
		// split volumes such as foo.7z.001
		last = parts[len(parts)-2]
	}
	if alias, ok := formatAliases[last]; ok {
		return alias
	}
	if len(parts) >= 3 && parts[len(parts)-2] == "tar" {
		return "tar." + last
	}
	return last
}

func isVolumeSuffix(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
