package errs

import (
	"errors"

	pkgerr "github.com/pkg/errors"
)

var (
	NotSupport = errors.New("not support")

	ObjectNotFound       = errors.New("object not found")
	NotFolder            = errors.New("not a folder")
	UnknownArchiveFormat = errors.New("unknown archive format")
	WrongArchivePassword = errors.New("wrong archive password")
	ProviderUnavailable  = errors.New("no enabled provider for this archive")

	// validation failures, reported as warnings and never touch the archive
	NoSelection        = errors.New("no entry selected")
	FolderNotSupported = errors.New("folders can not be copied or moved")
	CompressorArchive  = errors.New("compressor archives can not be structurally modified")
	MigrationActive    = errors.New("another migration is already in progress")
	SameLocation       = errors.New("destination is the current location of the entry")
	ObjectExists       = errors.New("an entry with this name already exists at the destination")

	BackupFailed       = errors.New("failed to back up archive")
	RestoreFailed      = errors.New("failed to restore archive from backup")
	VerificationFailed = errors.New("archive verification failed after mutation")
	SessionClosed      = errors.New("session is closed")
	SessionBusy        = errors.New("session is running another operation")
	UnsafePath         = errors.New("entry path escapes the target directory")
)

// IsValidation reports whether err is a user facing validation failure
// that should be surfaced as a warning instead of an error.
func IsValidation(err error) bool {
	switch pkgerr.Cause(err) {
	case NoSelection, FolderNotSupported, CompressorArchive, MigrationActive, SameLocation, ObjectExists:
		return true
	}
	return false
}

// IsCancellation reports whether err only means "nothing to do".
func IsCancellation(err error) bool {
	return errors.Is(pkgerr.Cause(err), SameLocation)
}
