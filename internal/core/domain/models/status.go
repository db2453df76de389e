package models

import (
	"fmt"
	"time"
)

// StatusKind discriminates the BookStatus variants.
type StatusKind string

const (
	StatusKindHoldable           StatusKind = "holdable"
	StatusKindLoanable           StatusKind = "loanable"
	StatusKindHeld               StatusKind = "held"
	StatusKindLoanInProgress     StatusKind = "loan_in_progress"
	StatusKindLoaned             StatusKind = "loaned"
	StatusKindDownloadRequesting StatusKind = "download_requesting"
	StatusKindDownloading        StatusKind = "downloading"
	StatusKindDownloaded         StatusKind = "downloaded"
	StatusKindDownloadFailed     StatusKind = "download_failed"
)

// Priority orders statuses that race for the same book. Status updates can
// arrive late; a higher priority wins.
type Priority int

const (
	PriorityHoldable           Priority = 0
	PriorityHeld               Priority = 10
	PriorityLoanable           Priority = 15
	PriorityLoanInProgress     Priority = 20
	PriorityLoaned             Priority = 30
	PriorityDownloadRequesting Priority = 50
	PriorityDownloading        Priority = 60
	PriorityDownloadFailed     Priority = 90
	PriorityDownloaded         Priority = 100
)

var priorities = map[StatusKind]Priority{
	StatusKindHoldable:           PriorityHoldable,
	StatusKindLoanable:           PriorityLoanable,
	StatusKindHeld:               PriorityHeld,
	StatusKindLoanInProgress:     PriorityLoanInProgress,
	StatusKindLoaned:             PriorityLoaned,
	StatusKindDownloadRequesting: PriorityDownloadRequesting,
	StatusKindDownloading:        PriorityDownloading,
	StatusKindDownloaded:         PriorityDownloaded,
	StatusKindDownloadFailed:     PriorityDownloadFailed,
}

// PriorityOf returns the fixed priority of a status kind.
func PriorityOf(k StatusKind) Priority {
	return priorities[k]
}

// BookStatus is the runtime state of a locally tracked book. The set of
// implementations is closed; switch on the concrete type.
type BookStatus interface {
	ID() BookID
	Kind() StatusKind
	Priority() Priority
	isBookStatus()
}

type StatusHoldable struct {
	Book BookID
}

type StatusLoanable struct {
	Book BookID
}

// StatusHeld is a hold; Ready marks a hold that can be checked out now.
type StatusHeld struct {
	Book          BookID
	QueuePosition *int
	Start         *time.Time
	End           *time.Time
	Revocable     bool
	Ready         bool
}

type StatusLoanInProgress struct {
	Book BookID
}

type StatusLoaned struct {
	Book       BookID
	LoanEnd    *time.Time
	Returnable bool
}

type StatusDownloadRequesting struct {
	Book    BookID
	LoanEnd *time.Time
}

// StatusDownloading reports transfer progress. ExpectedBytes is -1 when unknown.
type StatusDownloading struct {
	Book          BookID
	CurrentBytes  int64
	ExpectedBytes int64
	LoanEnd       *time.Time
}

type StatusDownloaded struct {
	Book       BookID
	LoanEnd    *time.Time
	Returnable bool
}

type StatusDownloadFailed struct {
	Book    BookID
	Err     error
	LoanEnd *time.Time
}

func (s StatusHoldable) ID() BookID           { return s.Book }
func (s StatusLoanable) ID() BookID           { return s.Book }
func (s StatusHeld) ID() BookID               { return s.Book }
func (s StatusLoanInProgress) ID() BookID     { return s.Book }
func (s StatusLoaned) ID() BookID             { return s.Book }
func (s StatusDownloadRequesting) ID() BookID { return s.Book }
func (s StatusDownloading) ID() BookID        { return s.Book }
func (s StatusDownloaded) ID() BookID         { return s.Book }
func (s StatusDownloadFailed) ID() BookID     { return s.Book }

func (StatusHoldable) Kind() StatusKind           { return StatusKindHoldable }
func (StatusLoanable) Kind() StatusKind           { return StatusKindLoanable }
func (StatusHeld) Kind() StatusKind               { return StatusKindHeld }
func (StatusLoanInProgress) Kind() StatusKind     { return StatusKindLoanInProgress }
func (StatusLoaned) Kind() StatusKind             { return StatusKindLoaned }
func (StatusDownloadRequesting) Kind() StatusKind { return StatusKindDownloadRequesting }
func (StatusDownloading) Kind() StatusKind        { return StatusKindDownloading }
func (StatusDownloaded) Kind() StatusKind         { return StatusKindDownloaded }
func (StatusDownloadFailed) Kind() StatusKind     { return StatusKindDownloadFailed }

func (s StatusHoldable) Priority() Priority           { return PriorityOf(s.Kind()) }
func (s StatusLoanable) Priority() Priority           { return PriorityOf(s.Kind()) }
func (s StatusHeld) Priority() Priority               { return PriorityOf(s.Kind()) }
func (s StatusLoanInProgress) Priority() Priority     { return PriorityOf(s.Kind()) }
func (s StatusLoaned) Priority() Priority             { return PriorityOf(s.Kind()) }
func (s StatusDownloadRequesting) Priority() Priority { return PriorityOf(s.Kind()) }
func (s StatusDownloading) Priority() Priority        { return PriorityOf(s.Kind()) }
func (s StatusDownloaded) Priority() Priority         { return PriorityOf(s.Kind()) }
func (s StatusDownloadFailed) Priority() Priority     { return PriorityOf(s.Kind()) }

func (StatusHoldable) isBookStatus()           {}
func (StatusLoanable) isBookStatus()           {}
func (StatusHeld) isBookStatus()               {}
func (StatusLoanInProgress) isBookStatus()     {}
func (StatusLoaned) isBookStatus()             {}
func (StatusDownloadRequesting) isBookStatus() {}
func (StatusDownloading) isBookStatus()        {}
func (StatusDownloaded) isBookStatus()         {}
func (StatusDownloadFailed) isBookStatus()     {}

// Progress returns the completed fraction in [0,1], or -1 if the size is unknown.
func (s StatusDownloading) Progress() float64 {
	if s.ExpectedBytes <= 0 {
		return -1
	}
	p := float64(s.CurrentBytes) / float64(s.ExpectedBytes)
	if p > 1 {
		return 1
	}
	return p
}

func (s StatusDownloadFailed) String() string {
	if s.Err == nil {
		return fmt.Sprintf("[%s %s]", s.Kind(), s.Book)
	}
	return fmt.Sprintf("[%s %s %v]", s.Kind(), s.Book, s.Err)
}

// IsDownloadingFamily reports whether s is a requesting, in-progress or failed download.
func IsDownloadingFamily(s BookStatus) bool {
	switch s.(type) {
	case StatusDownloadRequesting, StatusDownloading, StatusDownloadFailed:
		return true
	default:
		return false
	}
}

// IsLoanedFamily reports whether s implies an active loan. Any download implies one.
func IsLoanedFamily(s BookStatus) bool {
	switch s.(type) {
	case StatusLoanInProgress, StatusLoaned, StatusDownloaded:
		return true
	default:
		return IsDownloadingFamily(s)
	}
}

// LoanEnd returns the loan expiry carried by s, if any.
func LoanEnd(s BookStatus) *time.Time {
	switch v := s.(type) {
	case StatusLoaned:
		return v.LoanEnd
	case StatusDownloadRequesting:
		return v.LoanEnd
	case StatusDownloading:
		return v.LoanEnd
	case StatusDownloaded:
		return v.LoanEnd
	case StatusDownloadFailed:
		return v.LoanEnd
	case StatusHeld:
		return v.End
	default:
		return nil
	}
}

// ShouldReplace decides whether incoming supersedes stored for the same book.
// Incoming wins when its priority is not lower, or when both are the same kind
// (progress ticks). A nil incoming status or a different book never wins.
func ShouldReplace(stored, incoming BookStatus) bool {
	if incoming == nil {
		return false
	}
	if stored == nil {
		return true
	}
	if stored.ID() != incoming.ID() {
		return false
	}
	if stored.Kind() == incoming.Kind() {
		return true
	}
	return incoming.Priority() >= stored.Priority()
}

// StatusFromAvailability seeds a status for id from parsed feed availability.
func StatusFromAvailability(id BookID, a Availability) BookStatus {
	switch v := a.(type) {
	case AvailabilityLoanable:
		return StatusLoanable{Book: id}
	case AvailabilityHeld:
		return StatusHeld{
			Book:          id,
			QueuePosition: v.QueuePosition,
			Start:         v.Since,
			End:           v.Until,
			Revocable:     v.Revoke != nil,
		}
	case AvailabilityHeldReady:
		return StatusHeld{Book: id, End: v.Until, Revocable: v.Revoke != nil, Ready: true}
	case AvailabilityLoaned:
		return StatusLoaned{Book: id, LoanEnd: v.Until, Returnable: v.Revoke != nil}
	case AvailabilityOpenAccess:
		return StatusLoaned{Book: id, Returnable: v.Revoke != nil}
	default:
		return StatusHoldable{Book: id}
	}
}
