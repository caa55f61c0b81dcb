package letter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const formLayout = `{
	"paper": "A4P",
	"origin": "LowerLeft",
	"fonts": {
		"input": {"name": "Helvetica", "size": 12}
	},
	"pages": {
		"1": {
			"content": {
				"textfield": [
					{"id": "firstName", "value": "", "pos": [100, 700], "width": 200},
					{"id": "lastName", "value": "", "pos": [100, 660], "width": 200},
					{"id": "hotelName", "value": "", "pos": [100, 620], "width": 200}
				]
			}
		}
	}
}`

// formTemplate builds a one-page PDF with three empty text fields.
func formTemplate(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, api.Create(nil, strings.NewReader(formLayout), &buf, model.NewDefaultConfiguration()))
	return buf.Bytes()
}

func readPDF(t *testing.T, data []byte) *model.Context {
	t.Helper()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	require.NoError(t, err)
	return ctx
}

// decodedStreams concatenates every stream that decodes with a supported
// filter: page contents and form XObjects alike.
func decodedStreams(ctx *model.Context) string {
	var sb strings.Builder
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if err := sd.Decode(); err != nil {
			continue
		}
		sb.Write(sd.Content)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func fill(t *testing.T, tpl []byte, values []FieldValue) ([]byte, *FillReport) {
	t.Helper()
	var out bytes.Buffer
	report, err := NewPDFCPUEngine(10).Fill(bytes.NewReader(tpl), values, &out)
	require.NoError(t, err)
	return out.Bytes(), report
}

func TestPDFCPUEngine_FieldNames(t *testing.T) {
	names, err := NewPDFCPUEngine(10).FieldNames(bytes.NewReader(formTemplate(t)))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"firstName", "lastName", "hotelName"}, names)
}

func TestPDFCPUEngine_FieldNamesRejectsGarbage(t *testing.T) {
	_, err := NewPDFCPUEngine(10).FieldNames(bytes.NewReader([]byte("not a pdf")))
	assert.Error(t, err)
}

func TestPDFCPUEngine_FillFlattensAndStrips(t *testing.T) {
	out, report := fill(t, formTemplate(t), []FieldValue{
		{Name: "firstName", Value: "Ada"},
		{Name: "lastName", Value: "Lovelace"},
		{Name: "hotelName", Value: "Hotel Cornavin"},
	})

	assert.Equal(t, 3, report.Flattened)
	assert.NoError(t, report.StripErr)

	ctx := readPDF(t, out)
	_, hasForm := ctx.RootDict.Find("AcroForm")
	assert.False(t, hasForm, "catalog keeps no interactive form")

	pageDict, _, _, err := ctx.PageDict(1, false)
	require.NoError(t, err)
	_, hasAnnots := pageDict.Find("Annots")
	assert.False(t, hasAnnots, "page keeps no widget annotations")

	streams := decodedStreams(ctx)
	for _, want := range []string{"Ada", "Lovelace", "Hotel Cornavin", "/VPFlat1_0 Do", "/VPFlat1_2 Do"} {
		assert.Contains(t, streams, want)
	}
}

func TestPDFCPUEngine_WritesClassicXRef(t *testing.T) {
	out, _ := fill(t, formTemplate(t), []FieldValue{{Name: "firstName", Value: "Ada"}})

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.NotContains(t, string(out), "/ObjStm", "object streams are disabled")
	assert.Contains(t, string(out), "trailer", "a cross-reference table, not a stream")
}

func TestPDFCPUEngine_EmptyValueRendersBlank(t *testing.T) {
	out, report := fill(t, formTemplate(t), []FieldValue{
		{Name: "firstName", Value: "Ada"},
		{Name: "lastName", Value: "Lovelace"},
		{Name: "hotelName", Value: ""},
	})

	assert.Equal(t, 3, report.Flattened)
	streams := decodedStreams(readPDF(t, out))
	assert.Contains(t, streams, "Lovelace")
	assert.NotContains(t, streams, "Hotel")
}

func TestPDFCPUEngine_PinFontSetsHelvetica(t *testing.T) {
	ctx := readPDF(t, formTemplate(t))
	require.NoError(t, NewPDFCPUEngine(9).pinFont(ctx))

	acro, err := ctx.DereferenceDict(ctx.RootDict["AcroForm"])
	require.NoError(t, err)
	assert.Equal(t, types.StringLiteral("/Helv 9 Tf 0 g"), acro["DA"])

	dr, err := ctx.DereferenceDict(acro["DR"])
	require.NoError(t, err)
	fonts, err := ctx.DereferenceDict(dr["Font"])
	require.NoError(t, err)
	_, ok := fonts.Find("Helv")
	assert.True(t, ok)

	fields, err := ctx.DereferenceArray(acro["Fields"])
	require.NoError(t, err)
	require.Len(t, fields, 3)
	for _, o := range fields {
		d, err := ctx.DereferenceDict(o)
		require.NoError(t, err)
		assert.Equal(t, types.StringLiteral("/Helv 9 Tf 0 g"), d["DA"])
	}
}

func TestPDFCPUEngine_NoFormIsTemplateInvalid(t *testing.T) {
	var plain bytes.Buffer
	layout := `{"paper": "A4P", "origin": "LowerLeft", "pages": {"1": {"content": {"text": [
		{"value": "No form here", "pos": [100, 700], "font": {"name": "Helvetica", "size": 12}}
	]}}}}`
	require.NoError(t, api.Create(nil, strings.NewReader(layout), &plain, model.NewDefaultConfiguration()))

	_, err := NewPDFCPUEngine(10).Fill(bytes.NewReader(plain.Bytes()), nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrTemplateInvalid)
}
