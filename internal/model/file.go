package model

import (
	"fmt"
	"os"
	"time"
)

// KeyStagedSource is the AdditionalInfo key holding the local path of a file
// staged for insertion into an archive.
const KeyStagedSource = "staged_source"

// FileInfo is one normalized entry of an archive listing.
// Two entries are the same entry when they share Level and FileName.
type FileInfo struct {
	Index          int            `json:"index"`
	Level          int            `json:"level"`
	FileName       string         `json:"file_name"`
	CRC            uint32         `json:"crc"`
	PackedSize     int64          `json:"packed_size"`
	RawSize        int64          `json:"raw_size"`
	LastWriteTime  *time.Time     `json:"last_write_time,omitempty"`
	LastAccessTime *time.Time     `json:"last_access_time,omitempty"`
	CreationTime   *time.Time     `json:"creation_time,omitempty"`
	User           *string        `json:"user,omitempty"`
	Group          *string        `json:"group,omitempty"`
	Attributes     uint32         `json:"attributes"`
	Comments       string         `json:"comments,omitempty"`
	IsFolder       bool           `json:"is_folder"`
	IsEncrypted    bool           `json:"is_encrypted"`
	AdditionalInfo map[string]any `json:"additional_info,omitempty"`
}

// EntryKey is the identity of a FileInfo inside one archive.
type EntryKey struct {
	Level    int
	FileName string
}

func (k EntryKey) String() string {
	return fmt.Sprintf("%d:%s", k.Level, k.FileName)
}

func (f *FileInfo) Key() EntryKey {
	return EntryKey{Level: f.Level, FileName: f.FileName}
}

// Equal compares identity only, every other field is ignored.
func (f *FileInfo) Equal(o *FileInfo) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f.Level == o.Level && f.FileName == o.FileName
}

func (f *FileInfo) Valid() bool {
	return f != nil && f.Index >= 0 && f.Level >= 0 && f.FileName != ""
}

func (f *FileInfo) ModTime() time.Time {
	if f.LastWriteTime == nil {
		return time.Time{}
	}
	return *f.LastWriteTime
}

func (f *FileInfo) SetExtra(key string, value any) {
	if f.AdditionalInfo == nil {
		f.AdditionalInfo = make(map[string]any)
	}
	f.AdditionalInfo[key] = value
}

// StagedSource returns the local file backing an entry that is about to be
// added to an archive.
func (f *FileInfo) StagedSource() (string, bool) {
	if f.AdditionalInfo == nil {
		return "", false
	}
	s, ok := f.AdditionalInfo[KeyStagedSource].(string)
	return s, ok && s != ""
}

func (f *FileInfo) Mode() os.FileMode {
	if f.IsFolder {
		return os.ModeDir | 0755
	}
	if f.Attributes&0777 != 0 {
		return os.FileMode(f.Attributes & 0777)
	}
	return 0644
}

func (f *FileInfo) String() string {
	return fmt.Sprintf("%s (level %d, %s)", f.FileName, f.Level, Size(f.RawSize))
}

func TimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
