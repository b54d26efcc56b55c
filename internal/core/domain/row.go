package domain

// DublinCoreFields enumerates the repeatable descriptive fields of the flat
// schema, in persistence order.
var DublinCoreFields = []string{
	"title",
	"creator",
	"subject",
	"description",
	"publisher",
	"contributor",
	"date",
	"type",
	"format",
	"identifier",
	"source",
	"language",
	"relation",
	"coverage",
	"rights",
}

// DublinCoreRow is the normalized flat-schema row for one harvested record.
type DublinCoreRow struct {
	// Identifier is the external record identifier (upsert key).
	Identifier string

	// RecID is the numeric id parsed from the identifier tail, nil when
	// the tail is not purely numeric.
	RecID *int64

	// Datestamp is the record's last-modified timestamp.
	Datestamp string

	// Deleted marks a tombstoned record. Deleted rows keep their key and
	// header columns but carry no descriptive content.
	Deleted bool

	// Set is the subset the record was harvested from.
	Set string

	// SourceURL is the archive endpoint the record came from.
	SourceURL string

	// DocumentSymbol is the first identifier value matching the document
	// symbol pattern, nil when none matches.
	DocumentSymbol *string

	// TitlePrimary is the first title value, nil when there is none.
	TitlePrimary *string

	// DatePrimary is the first date value, nil when there is none.
	DatePrimary *string

	// Fields maps each name in DublinCoreFields to its ordered values.
	// Every key is present; absent fields map to an empty (non-nil) list.
	Fields map[string][]string
}

// EmptyDublinCoreFields returns a field map with every descriptive field
// initialised to an empty list. Used both for deleted records and as the
// extraction starting point so absence is always an empty list, never nil.
func EmptyDublinCoreFields() map[string][]string {
	fields := make(map[string][]string, len(DublinCoreFields))
	for _, name := range DublinCoreFields {
		fields[name] = []string{}
	}
	return fields
}

// MarcRow is the normalized structured-schema row for one harvested record.
type MarcRow struct {
	Identifier string
	RecID      *int64
	Datestamp  string
	Deleted    bool
	Set        string
	SourceURL  string

	// MetadataXML is the verbatim serialized metadata block, nil when the
	// record carried no metadata element at all.
	MetadataXML *string

	// Record is the structured representation, nil when the payload
	// contains no structured record. The verbatim block is still stored
	// in that case.
	Record *MarcRecord
}

// MarcRecord is a tagged hierarchical metadata record.
type MarcRecord struct {
	// Leader is the record leader, trimmed, nil when absent.
	Leader *string `json:"leader"`

	// ControlFields are the record's control fields in document order.
	ControlFields []ControlField `json:"controlfields"`

	// DataFields are the record's data fields in document order.
	DataFields []DataField `json:"datafields"`
}

// ControlField is a tagged scalar field. An empty value is a real value,
// distinct from the field being absent.
type ControlField struct {
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

// DataField is a tagged field with two indicators and coded subfields.
// Indicators default to a single space when the attribute is absent.
type DataField struct {
	Tag       string     `json:"tag"`
	Ind1      string     `json:"ind1"`
	Ind2      string     `json:"ind2"`
	Subfields []Subfield `json:"subfields"`
}

// Subfield is a coded value within a data field.
type Subfield struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}
