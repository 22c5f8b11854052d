package service

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"ean_lookup_backend/internal/meteringpoint/transport"
	"ean_lookup_backend/platform/apperr"
	"ean_lookup_backend/platform/validator"

	playground "github.com/go-playground/validator/v10"
)

// Column names of the upload.
const (
	ColumnPostalCode           = "postalCode"
	ColumnStreetNumber         = "streetNumber"
	ColumnStreetNumberAddition = "streetNumberAddition"
)

const (
	opParse    = "lookups.parse"
	opValidate = "lookups.validate"
)

var (
	requiredColumns = []string{ColumnPostalCode, ColumnStreetNumber}
	postalCodeRE    = regexp.MustCompile(`^[1-9][0-9]{3}[A-Z]{2}$`)
	streetNumberRE  = regexp.MustCompile(`^[0-9]+(\.0+)?$`)
	utf8BOM         = []byte{0xEF, 0xBB, 0xBF}
)

// ParseTable reads an uploaded CSV into raw rows. Missing required columns
// reject the whole table; everything else is left to per-row validation.
func ParseTable(r io.Reader) ([]transport.RawRow, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.Validation("uploaded file is empty").WithOp(opParse)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, "unreadable CSV: "+err.Error(), err).WithOp(opParse)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, seen := columns[name]; !seen {
			columns[name] = i
		}
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("missing required columns: "+strings.Join(missing, ", ")).
			WithOp(opParse).
			WithDetails(map[string][]string{"missingColumns": missing})
	}

	cell := func(record []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}

	rows := make([]transport.RawRow, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindBadRequest, "unreadable CSV: "+err.Error(), err).WithOp(opParse)
		}

		line, _ := reader.FieldPos(0)
		rows = append(rows, transport.RawRow{
			Line:                 line,
			PostalCode:           cell(record, ColumnPostalCode),
			StreetNumber:         cell(record, ColumnStreetNumber),
			StreetNumberAddition: cell(record, ColumnStreetNumberAddition),
		})
	}

	return rows, nil
}

// addressInput is a row after normalization, checked by struct tags.
type addressInput struct {
	PostalCode           string `json:"postalCode" validate:"required,nlpostcode"`
	StreetNumber         string `json:"streetNumber" validate:"required,streetnumber"`
	StreetNumberAddition string `json:"streetNumberAddition" validate:"max=10"`
}

// RowValidator turns raw rows into address records.
type RowValidator struct {
	val *validator.Validator
}

// NewRowValidator registers the address rules on val.
func NewRowValidator(val *validator.Validator) (*RowValidator, error) {
	if err := val.RegisterValidation("nlpostcode", func(fl playground.FieldLevel) bool {
		return postalCodeRE.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register nlpostcode: %w", err)
	}
	if err := val.RegisterValidation("streetnumber", func(fl playground.FieldLevel) bool {
		_, ok := parseStreetNumber(fl.Field().String())
		return ok
	}); err != nil {
		return nil, fmt.Errorf("register streetnumber: %w", err)
	}
	return &RowValidator{val: val}, nil
}

// ValidateRow normalizes row and checks it. The error is a validation error
// naming every failing field.
func (v *RowValidator) ValidateRow(row transport.RawRow) (transport.AddressRecord, error) {
	input := addressInput{
		PostalCode:           NormalizePostalCode(row.PostalCode),
		StreetNumber:         strings.TrimSpace(row.StreetNumber),
		StreetNumberAddition: strings.TrimSpace(row.StreetNumberAddition),
	}

	if err := v.val.Struct(input); err != nil {
		var fieldErrs playground.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return transport.AddressRecord{}, apperr.Wrap(apperr.KindValidation, err.Error(), err).WithOp(opValidate)
		}

		raw := map[string]string{
			ColumnPostalCode:           strings.TrimSpace(row.PostalCode),
			ColumnStreetNumber:         input.StreetNumber,
			ColumnStreetNumberAddition: input.StreetNumberAddition,
		}
		messages := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			if fe.Tag() == "required" {
				messages = append(messages, "missing "+fe.Field())
				continue
			}
			messages = append(messages, fmt.Sprintf("invalid %s %q", fe.Field(), raw[fe.Field()]))
		}
		return transport.AddressRecord{}, apperr.Validation(strings.Join(messages, "; ")).WithOp(opValidate)
	}

	number, _ := parseStreetNumber(input.StreetNumber)
	return transport.AddressRecord{
		PostalCode:           input.PostalCode,
		StreetNumber:         number,
		StreetNumberAddition: input.StreetNumberAddition,
		Source:               row,
	}, nil
}

// NormalizePostalCode upper-cases value and strips all whitespace.
func NormalizePostalCode(value string) string {
	return strings.ToUpper(strings.Join(strings.Fields(value), ""))
}

// parseStreetNumber accepts positive integers, including the "10.0" form
// spreadsheet exports produce.
func parseStreetNumber(value string) (int, bool) {
	if !streetNumberRE.MatchString(value) {
		return 0, false
	}
	digits, _, _ := strings.Cut(value, ".")
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 || n > math.MaxInt32 {
		return 0, false
	}
	return n, true
}
