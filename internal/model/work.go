package model

// LocationID identifies an anchor element on a page that can carry a badge.
type LocationID int

// WorkItem is a unit a mode driver hands to the scheduler.
type WorkItem interface {
	// Key is unique per page: the user id or the thread id.
	Key() string
	workItem()
}

// UserReference is a user linked one or more times from a thread page.
type UserReference struct {
	UserID      string
	DisplayName string
	ProfileURL  string
	Occurrences []LocationID
}

func (u UserReference) Key() string { return "user:" + u.UserID }
func (UserReference) workItem()     {}

// ThreadReference is a thread row on a listing page. Its OP has to be
// resolved through the thread page before it can be scored.
type ThreadReference struct {
	ThreadID       string
	Title          string
	TitleLocation  LocationID
	OPDisplayName  string
	OPLocationHint LocationID
}

func (t ThreadReference) Key() string { return "thread:" + t.ThreadID }
func (ThreadReference) workItem()     {}
