package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const book = BookID("b1")

func allStatuses(id BookID) []BookStatus {
	return []BookStatus{
		StatusHoldable{Book: id},
		StatusHeld{Book: id},
		StatusLoanable{Book: id},
		StatusLoanInProgress{Book: id},
		StatusLoaned{Book: id},
		StatusDownloadRequesting{Book: id},
		StatusDownloading{Book: id, ExpectedBytes: -1},
		StatusDownloadFailed{Book: id, Err: errors.New("boom")},
		StatusDownloaded{Book: id},
	}
}

func TestPriorityOrdering(t *testing.T) {
	statuses := allStatuses(book)
	for i := 1; i < len(statuses); i++ {
		assert.Less(t, statuses[i-1].Priority(), statuses[i].Priority(),
			"%s should rank below %s", statuses[i-1].Kind(), statuses[i].Kind())
	}
	assert.Equal(t, PriorityLoanable, StatusLoanable{}.Priority())
	assert.Equal(t, Priority(100), StatusDownloaded{}.Priority())
}

func TestShouldReplace(t *testing.T) {
	t.Run("nothing stored", func(t *testing.T) {
		assert.True(t, ShouldReplace(nil, StatusHoldable{Book: book}))
	})

	t.Run("nil incoming", func(t *testing.T) {
		assert.False(t, ShouldReplace(StatusHoldable{Book: book}, nil))
	})

	t.Run("different book", func(t *testing.T) {
		assert.False(t, ShouldReplace(StatusHoldable{Book: book}, StatusDownloaded{Book: "other"}))
	})

	t.Run("lower priority loses", func(t *testing.T) {
		assert.False(t, ShouldReplace(StatusDownloaded{Book: book}, StatusLoaned{Book: book}))
		assert.False(t, ShouldReplace(StatusLoaned{Book: book}, StatusHoldable{Book: book}))
		assert.False(t, ShouldReplace(StatusDownloading{Book: book}, StatusDownloadRequesting{Book: book}))
	})

	t.Run("higher priority wins", func(t *testing.T) {
		assert.True(t, ShouldReplace(StatusLoaned{Book: book}, StatusDownloadRequesting{Book: book}))
		assert.True(t, ShouldReplace(StatusDownloading{Book: book}, StatusDownloaded{Book: book}))
		assert.True(t, ShouldReplace(StatusDownloading{Book: book}, StatusDownloadFailed{Book: book}))
	})

	t.Run("same kind replaces", func(t *testing.T) {
		stored := StatusDownloading{Book: book, CurrentBytes: 10, ExpectedBytes: 100}
		incoming := StatusDownloading{Book: book, CurrentBytes: 5, ExpectedBytes: 100}
		assert.True(t, ShouldReplace(stored, incoming))
	})

	t.Run("every pair", func(t *testing.T) {
		for _, stored := range allStatuses(book) {
			for _, incoming := range allStatuses(book) {
				want := incoming.Priority() >= stored.Priority()
				assert.Equal(t, want, ShouldReplace(stored, incoming), "%s -> %s", stored.Kind(), incoming.Kind())
			}
		}
	})
}

func TestFamilies(t *testing.T) {
	downloading := map[StatusKind]bool{
		StatusKindDownloadRequesting: true,
		StatusKindDownloading:        true,
		StatusKindDownloadFailed:     true,
	}
	loaned := map[StatusKind]bool{
		StatusKindLoanInProgress:     true,
		StatusKindLoaned:             true,
		StatusKindDownloaded:         true,
		StatusKindDownloadRequesting: true,
		StatusKindDownloading:        true,
		StatusKindDownloadFailed:     true,
	}

	for _, s := range allStatuses(book) {
		assert.Equal(t, downloading[s.Kind()], IsDownloadingFamily(s), "downloading family: %s", s.Kind())
		assert.Equal(t, loaned[s.Kind()], IsLoanedFamily(s), "loaned family: %s", s.Kind())
	}
}

func TestStatusDownloading_Progress(t *testing.T) {
	assert.Equal(t, -1.0, StatusDownloading{CurrentBytes: 10, ExpectedBytes: -1}.Progress())
	assert.Equal(t, 0.25, StatusDownloading{CurrentBytes: 25, ExpectedBytes: 100}.Progress())
	assert.Equal(t, 1.0, StatusDownloading{CurrentBytes: 200, ExpectedBytes: 100}.Progress())
}

func TestStatusDownloadFailed_String(t *testing.T) {
	s := StatusDownloadFailed{Book: book, Err: errors.New("disk full")}
	assert.Equal(t, "[download_failed b1 disk full]", s.String())
	assert.Equal(t, "[download_failed b1]", StatusDownloadFailed{Book: book}.String())
}

func TestStatusFromAvailability(t *testing.T) {
	until := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	revoke := mustURL(t, "http://example.com/revoke")
	pos := 3

	tests := []struct {
		name string
		in   Availability
		want BookStatus
	}{
		{"holdable", AvailabilityHoldable{}, StatusHoldable{Book: book}},
		{"loanable", AvailabilityLoanable{}, StatusLoanable{Book: book}},
		{
			"held",
			AvailabilityHeld{QueuePosition: &pos, Until: &until, Revoke: revoke},
			StatusHeld{Book: book, QueuePosition: &pos, End: &until, Revocable: true},
		},
		{
			"held ready",
			AvailabilityHeldReady{Until: &until},
			StatusHeld{Book: book, End: &until, Ready: true},
		},
		{
			"loaned",
			AvailabilityLoaned{Until: &until, Revoke: revoke},
			StatusLoaned{Book: book, LoanEnd: &until, Returnable: true},
		},
		{"open access", AvailabilityOpenAccess{}, StatusLoaned{Book: book}},
		{"nil", nil, StatusHoldable{Book: book}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFromAvailability(book, tt.in))
		})
	}
}

func TestLoanEnd(t *testing.T) {
	end := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, &end, LoanEnd(StatusDownloaded{Book: book, LoanEnd: &end}))
	assert.Equal(t, &end, LoanEnd(StatusHeld{Book: book, End: &end}))
	assert.Nil(t, LoanEnd(StatusLoanable{Book: book}))
}

func TestStatusRecord(t *testing.T) {
	end := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	pos := 4

	for _, s := range []BookStatus{
		StatusHeld{Book: book, QueuePosition: &pos, End: &end, Revocable: true, Ready: true},
		StatusLoaned{Book: book, LoanEnd: &end, Returnable: true},
		StatusDownloading{Book: book, CurrentBytes: 5, ExpectedBytes: 10, LoanEnd: &end},
		StatusLoanInProgress{Book: book},
	} {
		got, err := DecodeStatus(EncodeStatus(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	failed, err := DecodeStatus(EncodeStatus(StatusDownloadFailed{Book: book, Err: errors.New("timeout")}))
	require.NoError(t, err)
	require.IsType(t, StatusDownloadFailed{}, failed)
	assert.EqualError(t, failed.(StatusDownloadFailed).Err, "timeout")

	_, err = DecodeStatus(StatusRecord{BookID: book, Kind: "lost"})
	assert.Error(t, err)
}
