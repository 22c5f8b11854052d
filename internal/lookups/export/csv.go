// Package export serializes result tables for download.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ean_lookup_backend/internal/lookups/transport"
	mptransport "ean_lookup_backend/internal/meteringpoint/transport"
	"ean_lookup_backend/platform/apperr"
)

// Header lists the export columns in order.
var Header = []string{
	"postalCode",
	"streetNumber",
	"streetNumberAddition",
	"eanElectricity",
	"eanGas",
	"bagId",
	"status",
	"errorKind",
	"errorDetail",
}

// Download file names.
const (
	CSVFileName  = "metering_data.csv"
	XLSXFileName = "metering_data.xlsx"
)

// Row renders one result as export cells. Absent values are empty cells.
func Row(r mptransport.LookupResult) []string {
	return []string{
		r.Input.PostalCode,
		r.Input.StreetNumber,
		r.Input.StreetNumberAddition,
		deref(r.EANElectricity),
		deref(r.EANGas),
		deref(r.BAGID),
		string(r.Status),
		string(r.ErrorKind),
		deref(r.ErrorDetail),
	}
}

// WriteCSV writes table as UTF-8 CSV with a header row.
func WriteCSV(w io.Writer, table transport.ResultTable) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, result := range table.Results {
		if err := writer.Write(Row(result)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCSV parses a previous export back into results. Cells are trimmed and
// empty cells become absent values.
func ReadCSV(r io.Reader) ([]mptransport.LookupResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)

	header, err := reader.Read()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, "unreadable export header: "+err.Error(), err)
	}
	for i, name := range Header {
		if strings.TrimSpace(header[i]) != name {
			return nil, apperr.BadRequest(fmt.Sprintf("unexpected export column %d: %q", i+1, header[i]))
		}
	}

	results := make([]mptransport.LookupResult, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindBadRequest, "unreadable export row: "+err.Error(), err)
		}

		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}

		status, ok := mptransport.ParseStatus(record[6])
		if !ok {
			return nil, apperr.BadRequest("unknown status " + strconv.Quote(record[6]))
		}

		line, _ := reader.FieldPos(0)
		results = append(results, mptransport.LookupResult{
			Input: mptransport.RawRow{
				Line:                 line,
				PostalCode:           record[0],
				StreetNumber:         record[1],
				StreetNumberAddition: record[2],
			},
			EANElectricity: ptr(record[3]),
			EANGas:         ptr(record[4]),
			BAGID:          ptr(record[5]),
			Status:         status,
			ErrorKind:      mptransport.ErrorKind(record[7]),
			ErrorDetail:    ptr(record[8]),
		})
	}

	return results, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
