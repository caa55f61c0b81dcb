package letter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const helvetica = "Helv"

var errNoAcroForm = errors.New("document has no interactive form")

// PDFCPUEngine implements Engine with pdfcpu.
type PDFCPUEngine struct {
	FontSize float64
}

func NewPDFCPUEngine(fontSize float64) *PDFCPUEngine {
	return &PDFCPUEngine{FontSize: fontSize}
}

func (e *PDFCPUEngine) conf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

func (e *PDFCPUEngine) FieldNames(template io.ReadSeeker) ([]string, error) {
	fields, err := api.FormFields(template, e.conf())
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names, nil
}

type fillDocument struct {
	Forms []fillForm `json:"forms"`
}

type fillForm struct {
	TextFields []fillTextField `json:"textfield"`
}

type fillTextField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Fill runs three passes. The first pins every field to Helvetica so the
// appearances pdfcpu generates look the same in every viewer. The second
// fills the form. The third draws the widget appearances into the page
// content and removes the form.
func (e *PDFCPUEngine) Fill(template io.ReadSeeker, values []FieldValue, w io.Writer) (*FillReport, error) {
	conf := e.conf()

	ctx, err := api.ReadValidateAndOptimize(template, conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateInvalid, err)
	}
	if err := e.pinFont(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateInvalid, err)
	}
	var pinned bytes.Buffer
	if err := api.WriteContext(ctx, &pinned); err != nil {
		return nil, fmt.Errorf("write pinned template: %w", err)
	}

	doc := fillDocument{Forms: []fillForm{{TextFields: make([]fillTextField, 0, len(values))}}}
	for _, v := range values {
		doc.Forms[0].TextFields = append(doc.Forms[0].TextFields, fillTextField{Name: v.Name, Value: v.Value})
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var filled bytes.Buffer
	if err := api.FillForm(bytes.NewReader(pinned.Bytes()), bytes.NewReader(payload), &filled, conf); err != nil {
		return nil, fmt.Errorf("fill form: %w", err)
	}

	ctx, err = api.ReadValidateAndOptimize(bytes.NewReader(filled.Bytes()), conf)
	if err != nil {
		return nil, fmt.Errorf("read filled form: %w", err)
	}
	flattened, err := flatten(ctx)
	if err != nil {
		return nil, fmt.Errorf("flatten form: %w", err)
	}
	report := &FillReport{Flattened: flattened, StripErr: stripInteractive(ctx)}

	ctx.Configuration.WriteObjectStream = false
	ctx.Configuration.WriteXRefStream = false
	if err := api.WriteContext(ctx, w); err != nil {
		return nil, fmt.Errorf("write letter: %w", err)
	}
	return report, nil
}

func (e *PDFCPUEngine) pinFont(ctx *model.Context) error {
	acro, err := ctx.DereferenceDict(ctx.RootDict["AcroForm"])
	if err != nil {
		return err
	}
	if acro == nil {
		return errNoAcroForm
	}

	da := types.StringLiteral(fmt.Sprintf("/%s %g Tf 0 g", helvetica, e.FontSize))
	acro.Update("DA", da)
	acro.Update("NeedAppearances", types.Boolean(false))

	dr, err := ctx.DereferenceDict(acro["DR"])
	if err != nil {
		return err
	}
	if dr == nil {
		dr = types.NewDict()
		acro.Update("DR", dr)
	}
	fonts, err := ctx.DereferenceDict(dr["Font"])
	if err != nil {
		return err
	}
	if fonts == nil {
		fonts = types.NewDict()
		dr.Update("Font", fonts)
	}
	if _, ok := fonts.Find(helvetica); !ok {
		font := types.Dict{
			"Type":     types.Name("Font"),
			"Subtype":  types.Name("Type1"),
			"BaseFont": types.Name("Helvetica"),
			"Encoding": types.Name("WinAnsiEncoding"),
		}
		ref, err := ctx.IndRefForNewObject(font)
		if err != nil {
			return err
		}
		fonts.Insert(helvetica, *ref)
	}

	fields, err := ctx.DereferenceArray(acro["Fields"])
	if err != nil {
		return err
	}
	return setFieldDA(ctx, fields, da)
}

func setFieldDA(ctx *model.Context, fields types.Array, da types.StringLiteral) error {
	for _, o := range fields {
		d, err := ctx.DereferenceDict(o)
		if err != nil {
			return err
		}
		if d == nil {
			continue
		}
		d.Update("DA", da)
		kids, err := ctx.DereferenceArray(d["Kids"])
		if err != nil {
			return err
		}
		if err := setFieldDA(ctx, kids, da); err != nil {
			return err
		}
	}
	return nil
}

// flatten paints each visible widget's normal appearance into its page.
// The original content is wrapped in q/Q so its graphics state cannot leak
// into the appended drawing.
func flatten(ctx *model.Context) (int, error) {
	total := 0
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pageDict, _, inherited, err := ctx.PageDict(pageNr, false)
		if err != nil {
			return total, err
		}
		annots, err := ctx.DereferenceArray(pageDict["Annots"])
		if err != nil || len(annots) == 0 {
			continue
		}

		xobjects, err := pageXObjects(ctx, pageDict, inherited)
		if err != nil {
			return total, err
		}

		var draws bytes.Buffer
		n := 0
		for _, o := range annots {
			annot, err := ctx.DereferenceDict(o)
			if err != nil || annot == nil || !isVisibleWidget(annot) {
				continue
			}
			ref := normalAppearance(ctx, annot)
			if ref == nil {
				continue
			}
			obj, err := ctx.Dereference(*ref)
			if err != nil {
				continue
			}
			ap, ok := obj.(types.StreamDict)
			if !ok {
				continue
			}
			rect, ok := box(ctx, annot["Rect"])
			if !ok {
				continue
			}
			bbox, ok := box(ctx, ap.Dict["BBox"])
			if !ok {
				bbox = [4]float64{0, 0, rect[2] - rect[0], rect[3] - rect[1]}
			}
			ap.Dict.Insert("Type", types.Name("XObject"))
			ap.Dict.Insert("Subtype", types.Name("Form"))

			sx, sy := scale(rect[2]-rect[0], bbox[2]-bbox[0]), scale(rect[3]-rect[1], bbox[3]-bbox[1])
			tx, ty := rect[0]-bbox[0]*sx, rect[1]-bbox[1]*sy

			name := fmt.Sprintf("VPFlat%d_%d", pageNr, n)
			xobjects.Update(name, *ref)
			fmt.Fprintf(&draws, "q %.4f 0 0 %.4f %.4f %.4f cm /%s Do Q\n", sx, sy, tx, ty, name)
			n++
		}
		if n == 0 {
			continue
		}
		if err := wrapContents(ctx, pageDict, draws.Bytes()); err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func pageXObjects(ctx *model.Context, pageDict types.Dict, inherited *model.InheritedPageAttrs) (types.Dict, error) {
	res, err := ctx.DereferenceDict(pageDict["Resources"])
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = types.NewDict()
		if inherited != nil && inherited.Resources != nil {
			for k, v := range inherited.Resources {
				res[k] = v
			}
		}
		pageDict.Update("Resources", res)
	}
	xobjects, err := ctx.DereferenceDict(res["XObject"])
	if err != nil {
		return nil, err
	}
	if xobjects == nil {
		xobjects = types.NewDict()
		res.Update("XObject", xobjects)
	}
	return xobjects, nil
}

func wrapContents(ctx *model.Context, pageDict types.Dict, draws []byte) error {
	var existing types.Array
	switch c := pageDict["Contents"].(type) {
	case types.IndirectRef:
		obj, err := ctx.Dereference(c)
		if err != nil {
			return err
		}
		if arr, ok := obj.(types.Array); ok {
			existing = arr
		} else {
			existing = types.Array{c}
		}
	case types.Array:
		existing = c
	}

	pre, err := newContentStream(ctx, []byte("q\n"))
	if err != nil {
		return err
	}
	post, err := newContentStream(ctx, append([]byte("Q\n"), draws...))
	if err != nil {
		return err
	}

	contents := make(types.Array, 0, len(existing)+2)
	contents = append(contents, *pre)
	contents = append(contents, existing...)
	contents = append(contents, *post)
	pageDict.Update("Contents", contents)
	return nil
}

func newContentStream(ctx *model.Context, content []byte) (*types.IndirectRef, error) {
	sd := types.StreamDict{
		Dict:           types.NewDict(),
		Content:        content,
		FilterPipeline: []types.PDFFilter{{Name: "FlateDecode"}},
	}
	sd.Insert("Filter", types.Name("FlateDecode"))
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	return ctx.IndRefForNewObject(sd)
}

// stripInteractive removes the catalog's form and every page's annotations.
func stripInteractive(ctx *model.Context) error {
	var errs []error
	ctx.RootDict.Delete("AcroForm")
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pageDict, _, _, err := ctx.PageDict(pageNr, false)
		if err != nil {
			errs = append(errs, fmt.Errorf("page %d: %w", pageNr, err))
			continue
		}
		pageDict.Delete("Annots")
	}
	return errors.Join(errs...)
}

const (
	annotFlagHidden = 1 << 1
	annotFlagNoView = 1 << 5
)

func isVisibleWidget(annot types.Dict) bool {
	if st, ok := annot["Subtype"].(types.Name); !ok || st != "Widget" {
		return false
	}
	if f, ok := annot["F"].(types.Integer); ok && int(f)&(annotFlagHidden|annotFlagNoView) != 0 {
		return false
	}
	return true
}

// normalAppearance returns /AP /N, picking the /AS state for checkbox-like
// widgets whose /N is a dictionary of states.
func normalAppearance(ctx *model.Context, annot types.Dict) *types.IndirectRef {
	ap, err := ctx.DereferenceDict(annot["AP"])
	if err != nil || ap == nil {
		return nil
	}
	n, ok := ap.Find("N")
	if !ok {
		return nil
	}
	ref, ok := n.(types.IndirectRef)
	if !ok {
		return nil
	}
	obj, err := ctx.Dereference(ref)
	if err != nil {
		return nil
	}
	states, ok := obj.(types.Dict)
	if !ok {
		return &ref
	}
	as, ok := annot["AS"].(types.Name)
	if !ok {
		return nil
	}
	stateRef, ok := states[string(as)].(types.IndirectRef)
	if !ok {
		return nil
	}
	return &stateRef
}

func box(ctx *model.Context, o types.Object) ([4]float64, bool) {
	var out [4]float64
	arr, err := ctx.DereferenceArray(o)
	if err != nil || len(arr) != 4 {
		return out, false
	}
	for i, v := range arr {
		switch n := v.(type) {
		case types.Integer:
			out[i] = float64(n)
		case types.Float:
			out[i] = float64(n)
		default:
			return out, false
		}
	}
	out[0], out[2] = math.Min(out[0], out[2]), math.Max(out[0], out[2])
	out[1], out[3] = math.Min(out[1], out[3]), math.Max(out[1], out[3])
	return out, true
}

func scale(target, source float64) float64 {
	if source == 0 {
		return 1
	}
	return target / source
}
