package model

import "time"

type MessageType string

const (
	MsgProgress MessageType = "PROGRESS"
	MsgComplete MessageType = "COMPLETE"
	MsgError    MessageType = "ERROR"
	MsgWarning  MessageType = "WARNING"
	MsgRefresh  MessageType = "REFRESH"
)

// Message is an immutable event published on the bus.
type Message interface {
	GetSessionID() string
	GetType() MessageType
	GetMessage() string
	GetTime() time.Time
}

type ProgressMessage struct {
	sessionID string
	typ       MessageType
	message   string
	completed float64
	total     float64
	at        time.Time
}

// NewProgressMessage builds a progress event. A zero total means the amount
// of work is unknown and is normalized to completed=-1, total=1.
func NewProgressMessage(sessionID string, typ MessageType, message string, completed, total float64) ProgressMessage {
	if total == 0 {
		completed, total = -1, 1
	}
	return ProgressMessage{
		sessionID: sessionID,
		typ:       typ,
		message:   message,
		completed: completed,
		total:     total,
		at:        time.Now(),
	}
}

func (m ProgressMessage) GetSessionID() string { return m.sessionID }
func (m ProgressMessage) GetType() MessageType { return m.typ }
func (m ProgressMessage) GetMessage() string { return m.message }
func (m ProgressMessage) GetTime() time.Time { return m.at }
func (m ProgressMessage) Completed() float64 { return m.completed }
func (m ProgressMessage) Total() float64 { return m.total }

func (m ProgressMessage) Indeterminate() bool {
	return m.completed < 0
}

// Percent returns the progress in the range 0-100, or -1 when indeterminate.
func (m ProgressMessage) Percent() float64 {
	if m.Indeterminate() {
		return -1
	}
	p := m.completed * 100 / m.total
	if p > 100 {
		return 100
	}
	return p
}

type ErrorMessage struct {
	sessionID string
	typ       MessageType
	title     string
	header    string
	message   string
	err       error
	archive   *ArchiveInfo
	at        time.Time
}

func NewErrorMessage(sessionID, title, header, message string, err error, archive *ArchiveInfo) ErrorMessage {
	return newErrorMessage(sessionID, MsgError, title, header, message, err, archive)
}

// NewWarningMessage is an ErrorMessage for validation failures that left the
// archive untouched.
func NewWarningMessage(sessionID, title, header, message string, err error, archive *ArchiveInfo) ErrorMessage {
	return newErrorMessage(sessionID, MsgWarning, title, header, message, err, archive)
}

func newErrorMessage(sessionID string, typ MessageType, title, header, message string, err error, archive *ArchiveInfo) ErrorMessage {
	if message == "" && err != nil {
		message = err.Error()
	}
	return ErrorMessage{
		sessionID: sessionID,
		typ:       typ,
		title:     title,
		header:    header,
		message:   message,
		err:       err,
		archive:   archive.Clone(),
		at:        time.Now(),
	}
}

func (m ErrorMessage) GetSessionID() string { return m.sessionID }
func (m ErrorMessage) GetType() MessageType { return m.typ }
func (m ErrorMessage) GetMessage() string { return m.message }
func (m ErrorMessage) GetTime() time.Time { return m.at }
func (m ErrorMessage) Title() string { return m.title }
func (m ErrorMessage) Header() string { return m.header }
func (m ErrorMessage) Err() error { return m.err }
func (m ErrorMessage) Archive() *ArchiveInfo { return m.archive.Clone() }
