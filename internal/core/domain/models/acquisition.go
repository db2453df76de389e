package models

import "net/url"

// AcquisitionRelation is one of the recognized OPDS acquisition link relations.
type AcquisitionRelation string

const (
	AcquisitionBorrow     AcquisitionRelation = "http://opds-spec.org/acquisition/borrow"
	AcquisitionBuy        AcquisitionRelation = "http://opds-spec.org/acquisition/buy"
	AcquisitionGeneric    AcquisitionRelation = "http://opds-spec.org/acquisition"
	AcquisitionOpenAccess AcquisitionRelation = "http://opds-spec.org/acquisition/open-access"
	AcquisitionSample     AcquisitionRelation = "http://opds-spec.org/acquisition/sample"
	AcquisitionSubscribe  AcquisitionRelation = "http://opds-spec.org/acquisition/subscribe"
)

// AcquisitionRelations lists every recognized relation.
var AcquisitionRelations = []AcquisitionRelation{
	AcquisitionBorrow,
	AcquisitionBuy,
	AcquisitionGeneric,
	AcquisitionOpenAccess,
	AcquisitionSample,
	AcquisitionSubscribe,
}

// Acquisition is a typed link to a means of obtaining a book's content.
type Acquisition struct {
	Relation  AcquisitionRelation
	URI       *url.URL
	Type      *MIMEType
	Indirects []IndirectAcquisition
}

// IndirectAcquisition describes an intermediate format on the way to the content.
type IndirectAcquisition struct {
	Type      MIMEType              `json:"type"`
	Indirects []IndirectAcquisition `json:"indirects,omitempty"`
}

// DRMLicensor carries vendor-specific DRM registration data.
type DRMLicensor struct {
	Vendor        string `json:"vendor"`
	ClientToken   string `json:"client_token"`
	DeviceManager string `json:"device_manager,omitempty"`
}

type Category struct {
	Term   string `json:"term"`
	Scheme string `json:"scheme"`
	Label  string `json:"label,omitempty"`
}

type Group struct {
	URI   *url.URL
	Title string
}
