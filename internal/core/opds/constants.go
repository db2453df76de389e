package opds

// XML namespaces consumed by the parser.
const (
	AtomNS            = "http://www.w3.org/2005/Atom"
	OPDSNS            = "http://opds-spec.org/2010/catalog"
	DublinCoreTermsNS = "http://purl.org/dc/terms/"
	BibframeNS        = "http://bibframe.org/vocab/"
	DRMNS             = "http://librarysimplified.org/terms/drm"
)

// Link relations.
const (
	RelAcquisitionPrefix = "http://opds-spec.org/acquisition"
	RelRevoke            = "http://librarysimplified.org/terms/rel/revoke"
	RelAlternate         = "alternate"
	RelGroup             = "collection"
	RelIssues            = "issues"
	RelRelated           = "related"
	RelAnnotation        = "http://www.w3.org/ns/oa#annotationService"
	RelAnalyticsOpenBook = "http://librarysimplified.org/terms/rel/analytics/open-book"
	RelThumbnail         = "http://opds-spec.org/image/thumbnail"
	RelCover             = "http://opds-spec.org/image"
	RelDRMDevices        = "http://librarysimplified.org/terms/drm/rel/devices"

	relNext       = "next"
	relSearch     = "search"
	relSubsection = "subsection"
	relCatalog    = "http://opds-spec.org/catalog"
)

// Values of the opds:availability status attribute.
const (
	statusReady     = "ready"
	statusReserved  = "reserved"
	statusAvailable = "available"
)
