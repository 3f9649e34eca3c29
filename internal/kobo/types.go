package kobo

import "time"

// ReadStatus is the device's reading state for a book.
type ReadStatus int

const (
	ReadStatusUnread  ReadStatus = 0
	ReadStatusReading ReadStatus = 1
	ReadStatusRead    ReadStatus = 2
)

func (s ReadStatus) String() string {
	switch s {
	case ReadStatusReading:
		return "reading"
	case ReadStatusRead:
		return "read"
	default:
		return "unread"
	}
}

// Book is a single reading record extracted from the device database.
// Instances are created once per extraction pass and never mutated.
type Book struct {
	ContentID    string
	Title        string
	Author       string
	ReadStatus   ReadStatus
	PercentRead  int
	DateLastRead *time.Time
	Collections  []string // Raw shelf names, sorted
}

// Shelf is a collection definition from the device database.
type Shelf struct {
	Name         string
	InternalName string
	Type         string
}

// ReadingEvent is one row of the device's reading-event log. Not consumed by
// the sync path; exposed for future progress analytics.
type ReadingEvent struct {
	ContentID  string
	EventType  int
	OccurredAt *time.Time
}
