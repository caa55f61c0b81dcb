package importer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"

	"visa-portal/internal/records"
)

const sampleCSV = "applicationDate,meetingName,firstName,lastName,email,passportNumber,city\n" +
	"2025-01-15,Annual Assembly 2025,José,Núñez,jose@example.org,\"=\"\"0012345\"\"\",Montréal\n"

func TestDecodeCSV_PlainUTF8(t *testing.T) {
	rows, err := DecodeCSV([]byte(sampleCSV))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "José", rows[0].Get(records.ColFirstName))
	assert.Equal(t, `="0012345"`, rows[0].Get(records.ColPassportNumber))
}

func TestDecodeCSV_UTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(sampleCSV)...)

	rows, err := DecodeCSV(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2025-01-15", rows[0].Get(records.ColApplicationDate))
}

func TestDecodeCSV_UTF16WithBOM(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte(sampleCSV))
	require.NoError(t, err)

	rows, err := DecodeCSV(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Núñez", rows[0].Get(records.ColLastName))
	assert.Equal(t, "Montréal", rows[0].Get(records.ColCity))
}

func TestDecodeCSV_Windows1252Fallback(t *testing.T) {
	// "Montr\xe9al" is Montréal in Windows-1252 and invalid UTF-8.
	data := []byte("applicationDate,meetingName,firstName,lastName,email,passportNumber,city\n" +
		"2025-01-15,Assembly,Ana,Lima,ana@example.org,X1,Montr\xe9al\n")

	rows, err := DecodeCSV(data)
	require.NoError(t, err)
	assert.Equal(t, "Montréal", rows[0].Get(records.ColCity))
}

func TestDecodeCSV_KeepsBlankLineSlotsAndPadsShortRows(t *testing.T) {
	data := []byte("firstName,lastName,email\nAna,Lima\n,,\n\nBo,Chen,bo@example.org\n")

	rows, err := DecodeCSV(data)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "", rows[0].Get(records.ColEmail))
	assert.Nil(t, rows[1])
	assert.Nil(t, rows[2])
	assert.Equal(t, "bo@example.org", rows[3].Get(records.ColEmail))
}

func TestDecodeCSV_OnlyBlankLinesIsEmpty(t *testing.T) {
	_, err := DecodeCSV([]byte("firstName,lastName\n,\n\n , \n"))
	assert.ErrorIs(t, err, ErrEmptyUpload)
}

func TestDecodeCSV_Empty(t *testing.T) {
	_, err := DecodeCSV(nil)
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = DecodeCSV([]byte("firstName,lastName\n"))
	assert.ErrorIs(t, err, ErrEmptyUpload)
}

func TestDecode_GarbageWorkbookIsBatchError(t *testing.T) {
	_, err := Decode("applications.xlsx", []byte("not a zip archive"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyUpload)
}

func TestDecodeXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]string{"firstName", "lastName", "passportNumber"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]string{"Ana", "Lima", "0012345"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]string{"", "", ""}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]string{"Bo", "Chen", "0099"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	rows, err := Decode("upload.XLSX", buf.Bytes())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "0012345", rows[0].Get(records.ColPassportNumber))
	assert.True(t, rows[1].Blank())
	assert.Equal(t, "0099", rows[2].Get(records.ColPassportNumber))
}

func TestDecode_RejectsLegacyXLS(t *testing.T) {
	_, err := Decode("old.xls", []byte{0xD0, 0xCF})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
