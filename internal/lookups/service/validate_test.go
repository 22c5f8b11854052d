package service

import (
	"strings"
	"testing"

	"ean_lookup_backend/internal/meteringpoint/transport"
	"ean_lookup_backend/platform/apperr"
	"ean_lookup_backend/platform/validator"
)

func newRowValidator(t *testing.T) *RowValidator {
	t.Helper()
	v, err := NewRowValidator(validator.New())
	if err != nil {
		t.Fatalf("new row validator: %v", err)
	}
	return v
}

func TestParseTableReadsRowsInOrder(t *testing.T) {
	input := "\xEF\xBB\xBF postalCode ,streetNumber,streetNumberAddition\n1234AB,10,\n5678 cd,12,A\n,5\n"

	rows, err := ParseTable(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].PostalCode != "1234AB" || rows[0].StreetNumber != "10" || rows[0].Line != 2 {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].PostalCode != "5678 cd" || rows[1].StreetNumberAddition != "A" {
		t.Fatalf("raw cells must be kept as uploaded, got %+v", rows[1])
	}
	if rows[2].PostalCode != "" || rows[2].StreetNumber != "5" || rows[2].StreetNumberAddition != "" {
		t.Fatalf("ragged row should be padded, got %+v", rows[2])
	}
}

func TestParseTableWithoutAdditionColumn(t *testing.T) {
	rows, err := ParseTable(strings.NewReader("streetNumber,postalCode\n10,1234AB\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].PostalCode != "1234AB" || rows[0].StreetNumber != "10" {
		t.Fatalf("columns should be matched by name, got %+v", rows)
	}
}

func TestParseTableRejectsMissingColumns(t *testing.T) {
	_, err := ParseTable(strings.NewReader("zip,number\n1234AB,10\n"))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if apperr.Message(err) != "missing required columns: postalCode, streetNumber" {
		t.Fatalf("unexpected message %q", apperr.Message(err))
	}
}

func TestParseTableRejectsEmptyAndBrokenFiles(t *testing.T) {
	if _, err := ParseTable(strings.NewReader("")); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for empty file, got %v", err)
	}
	if _, err := ParseTable(strings.NewReader("postalCode,streetNumber\n12\"34AB,10\n")); !apperr.Is(err, apperr.KindBadRequest) {
		t.Fatalf("expected bad request for stray quote, got %v", err)
	}
}

func TestValidateRowNormalizes(t *testing.T) {
	v := newRowValidator(t)
	row := transport.RawRow{Line: 2, PostalCode: " 1234 ab ", StreetNumber: " 10.0 ", StreetNumberAddition: " bis "}

	addr, err := v.ValidateRow(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr.PostalCode != "1234AB" || addr.StreetNumber != 10 || addr.StreetNumberAddition != "bis" {
		t.Fatalf("unexpected record %+v", addr)
	}
	if addr.Source != row {
		t.Fatalf("record must keep its source row")
	}
}

func TestValidateRowMessages(t *testing.T) {
	v := newRowValidator(t)
	cases := []struct {
		row  transport.RawRow
		want string
	}{
		{transport.RawRow{StreetNumber: "5"}, "missing postalCode"},
		{transport.RawRow{PostalCode: "1234AB", StreetNumber: "  "}, "missing streetNumber"},
		{transport.RawRow{}, "missing postalCode; missing streetNumber"},
		{transport.RawRow{PostalCode: "0123AB", StreetNumber: "1"}, `invalid postalCode "0123AB"`},
		{transport.RawRow{PostalCode: "1234 XYZ", StreetNumber: "1"}, `invalid postalCode "1234 XYZ"`},
		{transport.RawRow{PostalCode: "1234AB", StreetNumber: "0"}, `invalid streetNumber "0"`},
		{transport.RawRow{PostalCode: "1234AB", StreetNumber: "10.5"}, `invalid streetNumber "10.5"`},
		{transport.RawRow{PostalCode: "1234AB", StreetNumber: "ten"}, `invalid streetNumber "ten"`},
		{transport.RawRow{PostalCode: "1234AB", StreetNumber: "1e1"}, `invalid streetNumber "1e1"`},
		{transport.RawRow{PostalCode: "1234AB", StreetNumber: "1E2"}, `invalid streetNumber "1E2"`},
		{transport.RawRow{PostalCode: "1234AB", StreetNumber: "+5"}, `invalid streetNumber "+5"`},
		{transport.RawRow{PostalCode: "1234AB", StreetNumber: "0.0"}, `invalid streetNumber "0.0"`},
		{transport.RawRow{PostalCode: "1234AB", StreetNumber: "1", StreetNumberAddition: "abcdefghijk"}, `invalid streetNumberAddition "abcdefghijk"`},
	}

	for _, tc := range cases {
		_, err := v.ValidateRow(tc.row)
		if !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("%+v: expected validation error, got %v", tc.row, err)
		}
		if apperr.Message(err) != tc.want {
			t.Fatalf("%+v: expected %q, got %q", tc.row, tc.want, apperr.Message(err))
		}
	}
}
