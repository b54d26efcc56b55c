// Package oai implements the OAI-PMH ListRecords transport and the
// per-record metadata extraction for the two supported schemas.
//
// The Client issues one paged request per call and parses the response
// envelope; it keeps no local state and never retries. The Extractor
// normalizes harvested records into the domain row shapes.
package oai
