package sri

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	pkgsri "github.com/jhoicas/cobros-sri/pkg/sri"
)

const maxDescriptionRunes = 300

var upper = cases.Upper(language.Und)

// XMLBuilderService construye el XML de la factura v1.1.0 (sin firma).
// No tiene efectos: el secuencial y la clave deben venir ya asignados.
type XMLBuilderService struct {
	issuer pkgsri.IssuerConfig
}

// NewXMLBuilderService crea el servicio con la configuración del emisor.
func NewXMLBuilderService(issuer pkgsri.IssuerConfig) *XMLBuilderService {
	return &XMLBuilderService{issuer: issuer}
}

// Build genera el documento <factura id="comprobante" version="1.1.0">.
func (s *XMLBuilderService) Build(inv *entity.Invoice, partner *entity.Partner) ([]byte, error) {
	if inv == nil || partner == nil {
		return nil, fmt.Errorf("sri: faltan factura o socio para construir el XML")
	}
	if inv.Sequential <= 0 {
		return nil, fmt.Errorf("sri: la factura %s no tiene secuencial asignado", inv.ID)
	}
	if err := pkgsri.ValidateAccessKey(inv.AccessKey); err != nil {
		return nil, fmt.Errorf("sri: factura %s: %w", inv.ID, err)
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("factura")
	root.CreateAttr("id", pkgsri.DocumentRootID)
	root.CreateAttr("version", pkgsri.DocumentVersion)

	s.writeInfoTributaria(root, inv)
	s.writeInfoFactura(root, inv, partner)
	s.writeDetalles(root, inv)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("sri: serializar XML: %w", err)
	}
	return out, nil
}

func (s *XMLBuilderService) writeInfoTributaria(root *etree.Element, inv *entity.Invoice) {
	it := root.CreateElement("infoTributaria")
	text(it, "ambiente", s.issuer.Environment)
	text(it, "tipoEmision", pkgsri.EmissionTypeNormal)
	text(it, "razonSocial", s.issuer.LegalName)
	if s.issuer.TradeName != "" {
		text(it, "nombreComercial", s.issuer.TradeName)
	}
	text(it, "ruc", s.issuer.RUC)
	text(it, "claveAcceso", inv.AccessKey)
	text(it, "codDoc", pkgsri.DocTypeInvoice)
	text(it, "estab", s.issuer.Establishment)
	text(it, "ptoEmi", s.issuer.EmissionPoint)
	text(it, "secuencial", pkgsri.PadSequential(strconv.FormatInt(inv.Sequential, 10)))
	text(it, "dirMatriz", s.issuer.MainAddress)
}

func (s *XMLBuilderService) writeInfoFactura(root *etree.Element, inv *entity.Invoice, partner *entity.Partner) {
	inf := root.CreateElement("infoFactura")
	text(inf, "fechaEmision", inv.IssueDate.Format("02/01/2006"))
	text(inf, "dirEstablecimiento", s.issuer.EstablishmentAddr())
	text(inf, "obligadoContabilidad", s.issuer.AccountingFlag())
	text(inf, "tipoIdentificacionComprador", IdentificationCode(partner.IdentificationType))
	text(inf, "razonSocialComprador", partner.FullName())
	text(inf, "identificacionComprador", partner.Identification)
	if partner.Address != "" {
		text(inf, "direccionComprador", partner.Address)
	}
	text(inf, "totalSinImpuestos", money(inv.Subtotal))
	text(inf, "totalDescuento", money(decimal.Zero))

	ti := inf.CreateElement("totalConImpuestos").CreateElement("totalImpuesto")
	text(ti, "codigo", pkgsri.TaxCodeIVA)
	text(ti, "codigoPorcentaje", s.taxRateCode())
	text(ti, "baseImponible", money(inv.Subtotal))
	text(ti, "valor", money(inv.Tax))

	text(inf, "propina", money(decimal.Zero))
	text(inf, "importeTotal", money(inv.Total))
	text(inf, "moneda", pkgsri.CurrencyDollar)

	pago := inf.CreateElement("pagos").CreateElement("pago")
	text(pago, "formaPago", s.paymentForm())
	text(pago, "total", money(inv.Total))
}

func (s *XMLBuilderService) writeDetalles(root *etree.Element, inv *entity.Invoice) {
	det := root.CreateElement("detalles")
	rate := s.issuer.TaxRate
	for i, line := range inv.Lines {
		d := det.CreateElement("detalle")
		text(d, "codigoPrincipal", strconv.Itoa(i+1))
		text(d, "descripcion", truncateRunes(line.Concept, maxDescriptionRunes))
		text(d, "cantidad", line.Quantity.StringFixed(2))
		text(d, "precioUnitario", line.UnitPrice.StringFixed(4))
		text(d, "descuento", money(decimal.Zero))
		text(d, "precioTotalSinImpuesto", money(line.Subtotal))

		imp := d.CreateElement("impuestos").CreateElement("impuesto")
		text(imp, "codigo", pkgsri.TaxCodeIVA)
		text(imp, "codigoPorcentaje", s.taxRateCode())
		text(imp, "tarifa", rate.StringFixed(2))
		text(imp, "baseImponible", money(line.Subtotal))
		text(imp, "valor", money(line.Subtotal.Mul(rate).Div(decimal.NewFromInt(100))))
	}
}

func (s *XMLBuilderService) taxRateCode() string {
	if s.issuer.TaxRateCode == "" {
		return pkgsri.TaxRateCodeZero
	}
	return s.issuer.TaxRateCode
}

func (s *XMLBuilderService) paymentForm() string {
	if s.issuer.PaymentForm == "" {
		return pkgsri.PaymentFormCash
	}
	return s.issuer.PaymentForm
}

// IdentificationCode tabla 6 del SRI: cédula por defecto; RUC y pasaporte por palabra clave.
func IdentificationCode(kind string) string {
	k := upper.String(strings.TrimSpace(kind))
	switch {
	case strings.Contains(k, "RUC") || k == "R":
		return pkgsri.IdentificationRUC
	case strings.Contains(k, "PASAPORTE") || k == "P":
		return pkgsri.IdentificationPassport
	default:
		return pkgsri.IdentificationCedula
	}
}

func text(parent *etree.Element, tag, value string) {
	parent.CreateElement(tag).SetText(value)
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
