package models

import (
	"errors"
	"fmt"
	"time"
)

// StatusRecord is the flat, storable form of a BookStatus.
type StatusRecord struct {
	BookID        BookID     `json:"book_id"`
	Kind          StatusKind `json:"kind"`
	QueuePosition *int       `json:"queue_position,omitempty"`
	Start         *time.Time `json:"start,omitempty"`
	End           *time.Time `json:"end,omitempty"`
	Flag          bool       `json:"flag,omitempty"`
	Ready         bool       `json:"ready,omitempty"`
	CurrentBytes  int64      `json:"current_bytes,omitempty"`
	ExpectedBytes int64      `json:"expected_bytes,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// EncodeStatus flattens s. Flag holds Revocable for holds and Returnable for loans.
func EncodeStatus(s BookStatus) StatusRecord {
	r := StatusRecord{BookID: s.ID(), Kind: s.Kind()}
	switch v := s.(type) {
	case StatusHeld:
		r.QueuePosition, r.Start, r.End = v.QueuePosition, v.Start, v.End
		r.Flag, r.Ready = v.Revocable, v.Ready
	case StatusLoaned:
		r.End, r.Flag = v.LoanEnd, v.Returnable
	case StatusDownloadRequesting:
		r.End = v.LoanEnd
	case StatusDownloading:
		r.End, r.CurrentBytes, r.ExpectedBytes = v.LoanEnd, v.CurrentBytes, v.ExpectedBytes
	case StatusDownloaded:
		r.End, r.Flag = v.LoanEnd, v.Returnable
	case StatusDownloadFailed:
		r.End = v.LoanEnd
		if v.Err != nil {
			r.Error = v.Err.Error()
		}
	}
	return r
}

// DecodeStatus rebuilds the status described by r.
func DecodeStatus(r StatusRecord) (BookStatus, error) {
	switch r.Kind {
	case StatusKindHoldable:
		return StatusHoldable{Book: r.BookID}, nil
	case StatusKindLoanable:
		return StatusLoanable{Book: r.BookID}, nil
	case StatusKindHeld:
		return StatusHeld{
			Book:          r.BookID,
			QueuePosition: r.QueuePosition,
			Start:         r.Start,
			End:           r.End,
			Revocable:     r.Flag,
			Ready:         r.Ready,
		}, nil
	case StatusKindLoanInProgress:
		return StatusLoanInProgress{Book: r.BookID}, nil
	case StatusKindLoaned:
		return StatusLoaned{Book: r.BookID, LoanEnd: r.End, Returnable: r.Flag}, nil
	case StatusKindDownloadRequesting:
		return StatusDownloadRequesting{Book: r.BookID, LoanEnd: r.End}, nil
	case StatusKindDownloading:
		return StatusDownloading{
			Book:          r.BookID,
			CurrentBytes:  r.CurrentBytes,
			ExpectedBytes: r.ExpectedBytes,
			LoanEnd:       r.End,
		}, nil
	case StatusKindDownloaded:
		return StatusDownloaded{Book: r.BookID, LoanEnd: r.End, Returnable: r.Flag}, nil
	case StatusKindDownloadFailed:
		var err error
		if r.Error != "" {
			err = errors.New(r.Error)
		}
		return StatusDownloadFailed{Book: r.BookID, Err: err, LoanEnd: r.End}, nil
	default:
		return nil, fmt.Errorf("unknown status kind %q for book %s", r.Kind, r.BookID)
	}
}
