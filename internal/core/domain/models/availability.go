package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// AvailabilityKind discriminates the Availability variants.
type AvailabilityKind string

const (
	AvailabilityKindOpenAccess AvailabilityKind = "open_access"
	AvailabilityKindLoanable   AvailabilityKind = "loanable"
	AvailabilityKindHoldable   AvailabilityKind = "holdable"
	AvailabilityKindHeld       AvailabilityKind = "held"
	AvailabilityKindHeldReady  AvailabilityKind = "held_ready"
	AvailabilityKindLoaned     AvailabilityKind = "loaned"
)

// Availability is the circulation state of a book for the current account.
// The set of implementations is closed; switch on the concrete type.
type Availability interface {
	Kind() AvailabilityKind
	isAvailability()
}

// AvailabilityOpenAccess is freely available content.
type AvailabilityOpenAccess struct {
	Revoke *url.URL
}

// AvailabilityLoanable can be borrowed right now.
type AvailabilityLoanable struct{}

// AvailabilityHoldable has no free copies; a hold can be placed.
type AvailabilityHoldable struct{}

// AvailabilityHeld is on hold for the account.
type AvailabilityHeld struct {
	Since         *time.Time
	QueuePosition *int
	Until         *time.Time
	Revoke        *url.URL
}

// AvailabilityHeldReady is a hold that can now be checked out.
type AvailabilityHeldReady struct {
	Until  *time.Time
	Revoke *url.URL
}

// AvailabilityLoaned is on loan to the account.
type AvailabilityLoaned struct {
	Since  *time.Time
	Until  *time.Time
	Revoke *url.URL
}

func (AvailabilityOpenAccess) Kind() AvailabilityKind { return AvailabilityKindOpenAccess }
func (AvailabilityLoanable) Kind() AvailabilityKind   { return AvailabilityKindLoanable }
func (AvailabilityHoldable) Kind() AvailabilityKind   { return AvailabilityKindHoldable }
func (AvailabilityHeld) Kind() AvailabilityKind       { return AvailabilityKindHeld }
func (AvailabilityHeldReady) Kind() AvailabilityKind  { return AvailabilityKindHeldReady }
func (AvailabilityLoaned) Kind() AvailabilityKind     { return AvailabilityKindLoaned }

func (AvailabilityOpenAccess) isAvailability() {}
func (AvailabilityLoanable) isAvailability()   {}
func (AvailabilityHoldable) isAvailability()   {}
func (AvailabilityHeld) isAvailability()       {}
func (AvailabilityHeldReady) isAvailability()  {}
func (AvailabilityLoaned) isAvailability()     {}

// RevokeURI returns the revocation link carried by a, if any.
func RevokeURI(a Availability) *url.URL {
	switch v := a.(type) {
	case AvailabilityOpenAccess:
		return v.Revoke
	case AvailabilityHeld:
		return v.Revoke
	case AvailabilityHeldReady:
		return v.Revoke
	case AvailabilityLoaned:
		return v.Revoke
	default:
		return nil
	}
}

type availabilityJSON struct {
	Kind          AvailabilityKind `json:"kind"`
	Since         *time.Time       `json:"since,omitempty"`
	QueuePosition *int             `json:"queue_position,omitempty"`
	Until         *time.Time       `json:"until,omitempty"`
	Revoke        string           `json:"revoke,omitempty"`
}

// MarshalAvailability encodes a with a "kind" discriminant.
func MarshalAvailability(a Availability) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("nil availability")
	}
	out := availabilityJSON{Kind: a.Kind()}
	if u := RevokeURI(a); u != nil {
		out.Revoke = u.String()
	}
	switch v := a.(type) {
	case AvailabilityHeld:
		out.Since, out.QueuePosition, out.Until = v.Since, v.QueuePosition, v.Until
	case AvailabilityHeldReady:
		out.Until = v.Until
	case AvailabilityLoaned:
		out.Since, out.Until = v.Since, v.Until
	}
	return json.Marshal(out)
}

// UnmarshalAvailability decodes the output of MarshalAvailability.
func UnmarshalAvailability(data []byte) (Availability, error) {
	var in availabilityJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("failed to decode availability: %w", err)
	}

	var revoke *url.URL
	if in.Revoke != "" {
		u, err := url.Parse(in.Revoke)
		if err != nil {
			return nil, fmt.Errorf("invalid revoke uri: %w", err)
		}
		revoke = u
	}

	switch in.Kind {
	case AvailabilityKindOpenAccess:
		return AvailabilityOpenAccess{Revoke: revoke}, nil
	case AvailabilityKindLoanable:
		return AvailabilityLoanable{}, nil
	case AvailabilityKindHoldable:
		return AvailabilityHoldable{}, nil
	case AvailabilityKindHeld:
		return AvailabilityHeld{Since: in.Since, QueuePosition: in.QueuePosition, Until: in.Until, Revoke: revoke}, nil
	case AvailabilityKindHeldReady:
		return AvailabilityHeldReady{Until: in.Until, Revoke: revoke}, nil
	case AvailabilityKindLoaned:
		return AvailabilityLoaned{Since: in.Since, Until: in.Until, Revoke: revoke}, nil
	default:
		return nil, fmt.Errorf("unknown availability kind %q", in.Kind)
	}
}
