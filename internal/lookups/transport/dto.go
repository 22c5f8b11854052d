// Package transport provides DTOs for the lookups domain.
package transport

import (
	"bytes"
	"encoding/json"
	"time"

	mptransport "ean_lookup_backend/internal/meteringpoint/transport"

	"github.com/google/uuid"
)

// Summary counts results per status.
type Summary struct {
	Total    int `json:"total"`
	Success  int `json:"success"`
	NotFound int `json:"notFound"`
	Error    int `json:"error"`
}

// Summarize counts results per status.
func Summarize(results []mptransport.LookupResult) Summary {
	summary := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case mptransport.StatusSuccess:
			summary.Success++
		case mptransport.StatusNotFound:
			summary.NotFound++
		default:
			summary.Error++
		}
	}
	return summary
}

// ResultTable is the processed outcome of one upload, one result per input
// row in input order.
type ResultTable struct {
	ID        uuid.UUID                  `json:"id"`
	CreatedAt time.Time                  `json:"createdAt"`
	Results   []mptransport.LookupResult `json:"results"`
	Summary   Summary                    `json:"summary"`
}

// NewResultTable wraps results in a table with a fresh ID.
func NewResultTable(results []mptransport.LookupResult) ResultTable {
	if results == nil {
		results = []mptransport.LookupResult{}
	}
	return ResultTable{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Results:   results,
		Summary:   Summarize(results),
	}
}

// AddressLookupRequest is the body of a single-address lookup.
type AddressLookupRequest struct {
	PostalCode           FlexString `json:"postalCode"`
	StreetNumber         FlexString `json:"streetNumber"`
	StreetNumberAddition FlexString `json:"streetNumberAddition"`
}

// RawRow converts the request into an uploaded-row equivalent.
func (r AddressLookupRequest) RawRow() mptransport.RawRow {
	return mptransport.RawRow{
		Line:                 1,
		PostalCode:           string(r.PostalCode),
		StreetNumber:         string(r.StreetNumber),
		StreetNumberAddition: string(r.StreetNumberAddition),
	}
}

// FlexString accepts a JSON string or number. Null decodes as empty.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = FlexString(num.String())
	return nil
}

// ExportFormat names a download format.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
)

// ExportQuery is the query of an export request.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv xlsx"`
}
