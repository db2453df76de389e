package opds

import (
	"net/url"

	"github.com/beevik/etree"

	"opdscore/internal/core/domain/models"
)

// inferAvailability decides the availability implied by an acquisition link
// with relation rel. The open-access relation is handled by the caller.
func inferAvailability(link *etree.Element, rel models.AcquisitionRelation, revoke *url.URL) (models.Availability, error) {
	copies := FirstChild(link, OPDSNS, "copies")
	holds := FirstChild(link, OPDSNS, "holds")

	if available := FirstChild(link, OPDSNS, "availability"); available != nil {
		status, _ := Attr(available, "status")
		switch status {
		case statusReady:
			until, err := AttrRFC3339(available, "until")
			if err != nil {
				return nil, err
			}
			return models.AvailabilityHeldReady{Until: until, Revoke: revoke}, nil

		case statusReserved:
			until, err := AttrRFC3339(available, "until")
			if err != nil {
				return nil, err
			}
			since, err := AttrRFC3339(available, "since")
			if err != nil {
				return nil, err
			}
			var queue *int
			if holds != nil {
				if queue, err = AttrInt(holds, "position"); err != nil {
					return nil, err
				}
			}
			return models.AvailabilityHeld{Since: since, QueuePosition: queue, Until: until, Revoke: revoke}, nil

		case statusAvailable:
			until, err := AttrRFC3339(available, "until")
			if err != nil {
				return nil, err
			}
			since, err := AttrRFC3339(available, "since")
			if err != nil {
				return nil, err
			}
			switch rel {
			case models.AcquisitionBorrow:
				return models.AvailabilityLoanable{}, nil
			case models.AcquisitionGeneric:
				return models.AvailabilityLoaned{Since: since, Until: until, Revoke: revoke}, nil
			}
			// Any other relation falls through to the copies check.
		}
	}

	// No usable availability element: loanable when copies remain, otherwise
	// the book can only be placed on hold.
	if copies != nil {
		n, err := AttrInt(copies, "available")
		if err != nil {
			return nil, err
		}
		if n != nil && *n > 0 {
			return models.AvailabilityLoanable{}, nil
		}
	}
	return models.AvailabilityHoldable{}, nil
}
