package oai

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/undltools/oaisync/internal/core/domain"
	"github.com/undltools/oaisync/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.RecordExtractor = (*Extractor)(nil)

// Extractor normalizes harvested records into the two row shapes.
// It is stateless and safe for reuse across pages.
type Extractor struct{}

// NewExtractor creates a new record extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// dcMetadata is the flat-schema payload: a dc container with repeatable
// descriptive elements.
type dcMetadata struct {
	XMLName xml.Name     `xml:"metadata"`
	DC      *dcContainer `xml:"dc"`
}

type dcContainer struct {
	Values []dcValue `xml:",any"`
}

type dcValue struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
}

// marcMetadata is the structured-schema payload: an optional record tree.
type marcMetadata struct {
	XMLName xml.Name        `xml:"metadata"`
	Record  *marcRecordElem `xml:"record"`
}

type marcRecordElem struct {
	Leader        *string            `xml:"leader"`
	ControlFields []controlFieldElem `xml:"controlfield"`
	DataFields    []dataFieldElem    `xml:"datafield"`
}

type controlFieldElem struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

// dataFieldElem uses pointer indicators to tell an absent attribute apart
// from a present-but-empty one; only the former defaults to a space.
type dataFieldElem struct {
	Tag       string         `xml:"tag,attr"`
	Ind1      *string        `xml:"ind1,attr"`
	Ind2      *string        `xml:"ind2,attr"`
	Subfields []subfieldElem `xml:"subfield"`
}

type subfieldElem struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

// ExtractDublinCore produces the flat-schema row for one record. Deleted
// records carry no descriptive content: every field is forced to an empty
// list regardless of payload.
func (e *Extractor) ExtractDublinCore(rec domain.HarvestedRecord, sourceURL string) (*domain.DublinCoreRow, error) {
	row := &domain.DublinCoreRow{
		Identifier: rec.Identifier,
		RecID:      domain.ParseRecID(rec.Identifier),
		Datestamp:  rec.Datestamp,
		Deleted:    rec.Deleted,
		Set:        rec.SetSpec,
		SourceURL:  sourceURL,
		Fields:     domain.EmptyDublinCoreFields(),
	}

	if !rec.Deleted && len(rec.Metadata) > 0 {
		var md dcMetadata
		if err := xml.Unmarshal(rec.Metadata, &md); err != nil {
			return nil, fmt.Errorf("parse flat metadata for %s: %w", rec.Identifier, err)
		}
		if md.DC != nil {
			for _, value := range md.DC.Values {
				values, known := row.Fields[value.XMLName.Local]
				if !known {
					continue
				}
				text := strings.TrimSpace(value.Text)
				if text == "" {
					continue
				}
				row.Fields[value.XMLName.Local] = append(values, text)
			}
		}
	}

	row.DocumentSymbol = domain.DocumentSymbol(row.Fields["identifier"])
	row.TitlePrimary = domain.First(row.Fields["title"])
	row.DatePrimary = domain.First(row.Fields["date"])
	return row, nil
}

// ExtractMarc produces the structured-schema row for one record. A
// payload without a structured record still yields the verbatim metadata
// block; the structured object is simply absent.
func (e *Extractor) ExtractMarc(rec domain.HarvestedRecord, sourceURL string) (*domain.MarcRow, error) {
	row := &domain.MarcRow{
		Identifier: rec.Identifier,
		RecID:      domain.ParseRecID(rec.Identifier),
		Datestamp:  rec.Datestamp,
		Deleted:    rec.Deleted,
		Set:        rec.SetSpec,
		SourceURL:  sourceURL,
	}

	if len(rec.Metadata) == 0 {
		return row, nil
	}

	verbatim := string(rec.Metadata)
	row.MetadataXML = &verbatim

	var md marcMetadata
	if err := xml.Unmarshal(rec.Metadata, &md); err != nil {
		return nil, fmt.Errorf("parse structured metadata for %s: %w", rec.Identifier, err)
	}
	if md.Record == nil {
		return row, nil
	}

	record := &domain.MarcRecord{
		ControlFields: make([]domain.ControlField, 0, len(md.Record.ControlFields)),
		DataFields:    make([]domain.DataField, 0, len(md.Record.DataFields)),
	}

	if md.Record.Leader != nil {
		leader := strings.TrimSpace(*md.Record.Leader)
		record.Leader = &leader
	}

	for _, cf := range md.Record.ControlFields {
		record.ControlFields = append(record.ControlFields, domain.ControlField{
			Tag:   cf.Tag,
			Value: strings.TrimSpace(cf.Value),
		})
	}

	for _, df := range md.Record.DataFields {
		field := domain.DataField{
			Tag:       df.Tag,
			Ind1:      indicator(df.Ind1),
			Ind2:      indicator(df.Ind2),
			Subfields: make([]domain.Subfield, 0, len(df.Subfields)),
		}
		for _, sf := range df.Subfields {
			field.Subfields = append(field.Subfields, domain.Subfield{
				Code:  sf.Code,
				Value: strings.TrimSpace(sf.Value),
			})
		}
		record.DataFields = append(record.DataFields, field)
	}

	row.Record = record
	return row, nil
}

// indicator defaults an absent indicator attribute to a single space.
// A present but empty attribute is preserved as-is.
func indicator(value *string) string {
	if value == nil {
		return " "
	}
	return *value
}
