// Package pdf genera el RIDE (Representación Impresa del Documento Electrónico)
// de las facturas autorizadas por el SRI.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Razón social + RUC   │  FACTURA N° + autorización  │
//	│  EMISOR: Matriz / establecimiento / contabilidad             │
//	│  COMPRADOR: Nombre + identificación + dirección              │
//	│  TABLA: Cant | Descripción | P.Unit | Subtotal               │
//	│  TOTALES: Subtotal / IVA / VALOR TOTAL                       │
//	│  FOOTER: Clave de acceso + QR                                │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/cobros-sri/internal/application/billing"
	appsri "github.com/jhoicas/cobros-sri/internal/application/sri"
	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	pkgsri "github.com/jhoicas/cobros-sri/pkg/sri"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// RideGenerator implementa billing.InvoicePDFGenerator y sri.RideRenderer usando Maroto v2.
type RideGenerator struct {
	issuer pkgsri.IssuerConfig
}

var (
	_ billing.InvoicePDFGenerator = (*RideGenerator)(nil)
	_ appsri.RideRenderer         = (*RideGenerator)(nil)
)

// NewRideGenerator construye el generador con los datos del emisor.
func NewRideGenerator(issuer pkgsri.IssuerConfig) *RideGenerator {
	return &RideGenerator{issuer: issuer}
}

// Render genera el PDF y devuelve sus bytes. La factura debe tener clave de acceso.
func (g *RideGenerator) Render(inv *entity.Invoice, partner *entity.Partner) ([]byte, error) {
	if inv == nil || partner == nil {
		return nil, fmt.Errorf("pdf: factura y socio son obligatorios")
	}
	if inv.AccessKey == "" {
		return nil, fmt.Errorf("pdf: la factura %s no tiene clave de acceso", inv.ID)
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("RIDE "+inv.AccessKey, true).
		WithAuthor(g.issuer.LegalName, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(g.headerRow(inv))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(g.issuerRow())
	m.AddRows(buyerRow(partner))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableDetailRows(inv.Lines)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(g.totalsRow(inv))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(accessKeyRows(inv)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func (g *RideGenerator) headerRow(inv *entity.Invoice) core.Row {
	number := fmt.Sprintf("%s-%s-%s", g.issuer.Establishment, g.issuer.EmissionPoint,
		pkgsri.PadSequential(fmt.Sprint(inv.Sequential)))
	authorizedAt := "-"
	if inv.AuthorizedAt != nil {
		authorizedAt = inv.AuthorizedAt.Format("02/01/2006 15:04:05")
	}

	return row.New(24).Add(
		col.New(7).Add(
			text.New(g.issuer.LegalName, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(g.issuer.TradeName, ""), props.Text{
				Size: 9, Top: 8, Color: colorGray,
			}),
			text.New("R.U.C.: "+g.issuer.RUC, props.Text{
				Style: fontstyle.Bold, Size: 9, Top: 14,
			}),
		),
		col.New(5).Add(
			text.New("FACTURA", props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New("No. "+number, props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 7,
			}),
			text.New("Autorización: "+nonEmpty(inv.AuthorizationNumber, inv.AccessKey), props.Text{
				Size: 6.5, Align: align.Right, Top: 14, Color: colorGray,
			}),
			text.New("Fecha autorización: "+authorizedAt, props.Text{
				Size: 7, Align: align.Right, Top: 19, Color: colorGray,
			}),
		),
	)
}

func (g *RideGenerator) issuerRow() core.Row {
	env := "PRUEBAS"
	if g.issuer.Environment == pkgsri.EnvironmentProduction {
		env = "PRODUCCIÓN"
	}
	return row.New(16).Add(
		col.New(12).Add(
			text.New("DATOS DEL EMISOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Dir. matriz: %s   |   Dir. establecimiento: %s",
				nonEmpty(g.issuer.MainAddress, "-"), nonEmpty(g.issuer.EstablishmentAddr(), "-"),
			), props.Text{Size: 8, Top: 6, Color: colorGray}),
			text.New(fmt.Sprintf("Obligado a llevar contabilidad: %s   |   Ambiente: %s   |   Emisión: NORMAL",
				g.issuer.AccountingFlag(), env,
			), props.Text{Size: 8, Top: 11, Color: colorGray}),
		),
	)
}

func buyerRow(partner *entity.Partner) core.Row {
	return row.New(18).Add(
		col.New(12).Add(
			text.New("COMPRADOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(partner.FullName(), props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("Identificación: %s   |   Email: %s   |   Tel: %s",
				partner.Identification,
				nonEmpty(partner.Email, "-"),
				nonEmpty(partner.Phone, "-"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Descripción", 6, align.Left),
		h("Precio Unit.", 2, align.Right),
		h("Subtotal", 3, align.Right),
	).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
}

func tableDetailRows(lines []entity.InvoiceLine) []core.Row {
	result := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(l.Quantity.String(),
				props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(6).Add(text.New(l.Concept,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
			col.New(2).Add(text.New(formatMoney(l.UnitPrice),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(3).Add(text.New(formatMoney(l.Subtotal),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

func (g *RideGenerator) totalsRow(inv *entity.Invoice) core.Row {
	label := func(s string, bold bool) core.Component {
		p := props.Text{Size: 9, Align: align.Right, Right: 2}
		if bold {
			p.Style = fontstyle.Bold
			p.Color = colorPrimary
		}
		return text.New(s, p)
	}
	value := func(s string, top float64, bold bool) core.Component {
		p := props.Text{Size: 9, Align: align.Right, Right: 1, Top: top}
		if bold {
			p.Style = fontstyle.Bold
			p.Color = colorPrimary
		}
		return text.New(s, p)
	}
	rate := g.issuer.TaxRate.String() + "%"

	return row.New(20).Add(
		col.New(6),
		col.New(3).Add(
			label("Subtotal:", false),
			text.New("IVA "+rate+":", props.Text{Size: 9, Align: align.Right, Right: 2, Top: 6}),
			text.New("VALOR TOTAL:", props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Right: 2, Top: 12, Color: colorPrimary,
			}),
		),
		col.New(3).Add(
			value(formatMoney(inv.Subtotal), 0, false),
			value(formatMoney(inv.Tax), 6, false),
			value(formatMoney(inv.Total), 12, true),
		),
	)
}

func accessKeyRows(inv *entity.Invoice) []core.Row {
	return []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("CLAVE DE ACCESO", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
		)),
		row.New(45).Add(
			col.New(4).Add(code.NewQr(inv.AccessKey, props.Rect{Percent: 95, Center: true})),
			col.New(8).Add(
				text.New(inv.AccessKey, props.Text{Size: 9, Top: 6, Left: 3}),
				text.New("Verifique este comprobante en srienlinea.sri.gob.ec\ncon la clave de acceso.", props.Text{
					Size: 8, Top: 16, Left: 3, Color: colorGray,
				}),
			),
		),
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// formatMoney dólares con dos decimales y comas de miles. Ej: 1234.5 → "$1,234.50".
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	n := len(intPart)
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, c)
	}
	return sign + "$" + string(buf) + "." + frac
}
