package export

import (
	"bytes"
	"strings"
	"testing"

	"ean_lookup_backend/internal/lookups/transport"
	mptransport "ean_lookup_backend/internal/meteringpoint/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func str(s string) *string { return &s }

func sampleTable() transport.ResultTable {
	return transport.NewResultTable([]mptransport.LookupResult{
		{
			Input:          mptransport.RawRow{Line: 2, PostalCode: "1234AB", StreetNumber: "10"},
			EANElectricity: str("871685900000000001"),
			EANGas:         str("871685900000000002"),
			BAGID:          str("0363010000000001"),
			Status:         mptransport.StatusSuccess,
		},
		mptransport.NotFoundResult(mptransport.RawRow{Line: 3, PostalCode: "9999ZZ", StreetNumber: "1", StreetNumberAddition: "A"}),
		mptransport.ErrorResult(mptransport.RawRow{Line: 4, StreetNumber: "5"}, mptransport.ErrorKindValidation, "missing postalCode"),
		mptransport.ErrorResult(mptransport.RawRow{Line: 5, PostalCode: "2000AA", StreetNumber: "2"}, mptransport.ErrorKindUpstream, `malformed registry response: "x", line 1`),
	})
}

func TestWriteCSVLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "postalCode,streetNumber,streetNumberAddition,eanElectricity,eanGas,bagId,status,errorKind,errorDetail", lines[0])
	assert.Equal(t, "1234AB,10,,871685900000000001,871685900000000002,0363010000000001,Success,,", lines[1])
	assert.Equal(t, "9999ZZ,1,A,,,,NotFound,,", lines[2])
	assert.Equal(t, ",5,,,,,Error,validation,missing postalCode", lines[3])
}

func TestCSVRoundTrip(t *testing.T) {
	table := sampleTable()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table))

	results, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, results, len(table.Results))

	for i, got := range results {
		want := table.Results[i]
		assert.Equal(t, want.Input.PostalCode, got.Input.PostalCode)
		assert.Equal(t, want.Input.StreetNumber, got.Input.StreetNumber)
		assert.Equal(t, want.Input.StreetNumberAddition, got.Input.StreetNumberAddition)
		assert.Equal(t, want.EANElectricity, got.EANElectricity)
		assert.Equal(t, want.EANGas, got.EANGas)
		assert.Equal(t, want.BAGID, got.BAGID)
		assert.Equal(t, want.Status, got.Status)
		assert.Equal(t, want.ErrorKind, got.ErrorKind)
		assert.Equal(t, want.ErrorDetail, got.ErrorDetail)
	}
}

func TestReadCSVNormalizesWhitespace(t *testing.T) {
	input := strings.Join(Header, ",") + "\n 1234AB , 10 ,, 871685900000000001 ,,, Success ,,\n"
	results, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1234AB", results[0].Input.PostalCode)
	assert.Equal(t, "871685900000000001", *results[0].EANElectricity)
	assert.Nil(t, results[0].EANGas)
	assert.Equal(t, mptransport.StatusSuccess, results[0].Status)
}

func TestReadCSVRejectsForeignFiles(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b,c,d,e,f,g,h,i\n"))
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader(strings.Join(Header, ",") + "\n1234AB,1,,,,,Maybe,,\n"))
	assert.Error(t, err)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleTable()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "871685900000000001", rows[1][3])
	assert.Equal(t, "Success", rows[1][6])
	assert.Equal(t, "missing postalCode", rows[3][8])
}
