package model

type ArchiveMeta interface {
	GetComment() string
	// IsEncrypted means if the content of the archive requires a password to access
	IsEncrypted() bool
	// GetEntryCount returns the number of entries stored in the archive, -1 if unknown
	GetEntryCount() int
}

type ArchiveMetaInfo struct {
	Comment    string
	Encrypted  bool
	EntryCount int
}

func (m *ArchiveMetaInfo) GetComment() string {
	return m.Comment
}

func (m *ArchiveMetaInfo) IsEncrypted() bool {
	return m.Encrypted
}

func (m *ArchiveMetaInfo) GetEntryCount() int {
	return m.EntryCount
}
