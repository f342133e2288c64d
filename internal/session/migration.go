package session

import "github.com/zipfx/zipfx/internal/model"

type MigrationType int

const (
	MigrationNone MigrationType = iota
	MigrationCopy
	MigrationMove
	MigrationDelete
)

func (t MigrationType) String() string {
	switch t {
	case MigrationCopy:
		return "COPY"
	case MigrationMove:
		return "MOVE"
	case MigrationDelete:
		return "DELETE"
	}
	return "NONE"
}

// Migration is the copy, move or delete staged for one entry of a session.
// At most one is pending at a time.
type Migration struct {
	Type   MigrationType   `json:"type"`
	Source *model.FileInfo `json:"source,omitempty"`
}

func (m Migration) Active() bool {
	return m.Type != MigrationNone
}
