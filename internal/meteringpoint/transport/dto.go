// Package transport provides DTOs for the metering-point domain.
package transport

// Product is the connection type of a metering point.
type Product string

const (
	ProductElectricity Product = "ELK"
	ProductGas         Product = "GAS"
)

// Products lists the connection types looked up for every address, in query order.
var Products = []Product{ProductElectricity, ProductGas}

// Valid reports whether p is a known connection type.
func (p Product) Valid() bool {
	return p == ProductElectricity || p == ProductGas
}

// PointAddress is the address the registry attaches to a metering point.
type PointAddress struct {
	PostalCode           string `json:"postalCode,omitempty"`
	StreetNumberAddition string `json:"streetNumberAddition,omitempty"`
	Street               string `json:"street,omitempty"`
	City                 string `json:"city,omitempty"`
}

// MeteringPoint is one connection returned by the registry.
type MeteringPoint struct {
	EAN                  string       `json:"ean"`
	Product              Product      `json:"product"`
	BAGID                string       `json:"bagId,omitempty"`
	SpecialMeteringPoint bool         `json:"specialMeteringPoint"`
	GridOperatorEAN      string       `json:"gridOperatorEan,omitempty"`
	Address              PointAddress `json:"address"`
}

// RawRow is one uploaded row exactly as read, before normalization.
type RawRow struct {
	Line                 int    `json:"line"`
	PostalCode           string `json:"postalCode"`
	StreetNumber         string `json:"streetNumber"`
	StreetNumberAddition string `json:"streetNumberAddition"`
}

// AddressRecord is a validated, normalized address. Only the row validator
// builds these, so a record always carries a usable postal code and number.
type AddressRecord struct {
	PostalCode           string `json:"postalCode"`
	StreetNumber         int    `json:"streetNumber"`
	StreetNumberAddition string `json:"streetNumberAddition,omitempty"`

	// Source is the row the record was built from; results echo it back.
	Source RawRow `json:"-"`
}

// Status is the outcome of one row.
type Status string

const (
	StatusSuccess  Status = "Success"
	StatusNotFound Status = "NotFound"
	StatusError    Status = "Error"
)

// ParseStatus maps an exported status value back to a Status.
func ParseStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusSuccess, StatusNotFound, StatusError:
		return Status(value), true
	}
	return "", false
}

// ErrorKind classifies Error results.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindNetwork    ErrorKind = "network"
	ErrorKindUpstream   ErrorKind = "upstream"
)

// LookupResult is the outcome for exactly one input row.
type LookupResult struct {
	Input          RawRow    `json:"input"`
	EANElectricity *string   `json:"eanElectricity"`
	EANGas         *string   `json:"eanGas"`
	BAGID          *string   `json:"bagId"`
	Status         Status    `json:"status"`
	ErrorKind      ErrorKind `json:"errorKind,omitempty"`
	ErrorDetail    *string   `json:"errorDetail"`
}

// ErrorResult builds an Error result for row.
func ErrorResult(row RawRow, kind ErrorKind, detail string) LookupResult {
	return LookupResult{
		Input:       row,
		Status:      StatusError,
		ErrorKind:   kind,
		ErrorDetail: &detail,
	}
}

// NotFoundResult builds a NotFound result for row.
func NotFoundResult(row RawRow) LookupResult {
	return LookupResult{Input: row, Status: StatusNotFound}
}
