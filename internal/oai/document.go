package oai

import "encoding/xml"

// Wire types for the OAI-PMH response envelope. Element names are matched
// by local name so the parser tolerates both prefixed and default
// namespace forms.

type envelope struct {
	XMLName     xml.Name         `xml:"OAI-PMH"`
	Error       *errorElem       `xml:"error"`
	ListRecords *listRecordsElem `xml:"ListRecords"`
}

type errorElem struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

type listRecordsElem struct {
	Records         []recordElem `xml:"record"`
	ResumptionToken *tokenElem   `xml:"resumptionToken"`
}

type tokenElem struct {
	Value string `xml:",chardata"`
}

type recordElem struct {
	Header   *headerElem   `xml:"header"`
	Metadata *metadataElem `xml:"metadata"`
}

type headerElem struct {
	Status     string   `xml:"status,attr"`
	Identifier string   `xml:"identifier"`
	Datestamp  string   `xml:"datestamp"`
	SetSpecs   []string `xml:"setSpec"`
}

// metadataElem captures the metadata payload verbatim so the structured
// extractors can re-parse it and the MARC variant can store it as-is.
type metadataElem struct {
	Inner []byte `xml:",innerxml"`
}

// headerStatusDeleted marks a tombstoned record in the header status.
const headerStatusDeleted = "deleted"
