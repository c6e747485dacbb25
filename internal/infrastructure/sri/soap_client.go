package sri

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	pkgsri "github.com/jhoicas/cobros-sri/pkg/sri"
)

// ── Constantes de endpoints ────────────────────────────────────────────────────

const (
	receptionURLTest     = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline"
	authorizationURLTest = "https://celcer.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline"
	receptionURLProd     = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/RecepcionComprobantesOffline"
	authorizationURLProd = "https://cel.sri.gob.ec/comprobantes-electronicos-ws/AutorizacionComprobantesOffline"

	soapNS          = "http://schemas.xmlsoap.org/soap/envelope/"
	nsReception     = "http://ec.gob.sri.ws.recepcion"
	nsAuthorization = "http://ec.gob.sri.ws.autorizacion"

	maxResponseBytes = 4 << 20
)

// Estados literales del SRI.
const (
	sriReceived     = "RECIBIDA"
	sriReturned     = "DEVUELTA"
	sriAuthorized   = "AUTORIZADO"
	sriNotAuthorize = "NO AUTORIZADO"
	sriRejected     = "RECHAZADA"
)

var authorizedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
}

// Endpoints URLs de los web services offline.
type Endpoints struct {
	Reception     string
	Authorization string
}

// DefaultEndpoints endpoints oficiales por ambiente (1 pruebas, 2 producción).
func DefaultEndpoints(environment string) Endpoints {
	if environment == pkgsri.EnvironmentProduction {
		return Endpoints{Reception: receptionURLProd, Authorization: authorizationURLProd}
	}
	return Endpoints{Reception: receptionURLTest, Authorization: authorizationURLTest}
}

// ── Implementación SOAP ────────────────────────────────────────────────────────

// SOAPAuthorityClient implementa pkgsri.Authority contra los WS del SRI.
// Nunca devuelve error: las fallas de red se clasifican en el resultado.
type SOAPAuthorityClient struct {
	endpoints  Endpoints
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ pkgsri.Authority = (*SOAPAuthorityClient)(nil)

// NewSOAPAuthorityClient construye el cliente. timeout <= 0 usa 60 s.
func NewSOAPAuthorityClient(endpoints Endpoints, timeout time.Duration, logger zerolog.Logger) *SOAPAuthorityClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &SOAPAuthorityClient{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "sri_soap").Logger(),
	}
}

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName   xml.Name   `xml:"soapenv:Envelope"`
	XmlnsSoap string     `xml:"xmlns:soapenv,attr"`
	XmlnsEc   string     `xml:"xmlns:ec,attr"`
	Header    soapHeader `xml:"soapenv:Header"`
	Body      soapBody   `xml:"soapenv:Body"`
}

type soapHeader struct{}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type validarComprobanteBody struct {
	XMLName xml.Name `xml:"ec:validarComprobante"`
	XML     string   `xml:"xml"` // comprobante firmado en base64
}

type autorizacionComprobanteBody struct {
	XMLName     xml.Name `xml:"ec:autorizacionComprobante"`
	ClaveAcceso string   `xml:"claveAccesoComprobante"`
}

// ── Estructuras de respuesta ──────────────────────────────────────────────────

type responseEnvelope struct {
	Body responseBody `xml:"Body"`
}

type responseBody struct {
	Reception     *receptionResponse     `xml:"validarComprobanteResponse>RespuestaRecepcionComprobante"`
	Authorization *authorizationResponse `xml:"autorizacionComprobanteResponse>RespuestaAutorizacionComprobante"`
	Fault         *soapFault             `xml:"Fault"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

type receptionResponse struct {
	Estado       string            `xml:"estado"`
	Comprobantes []receptionDocRef `xml:"comprobantes>comprobante"`
}

type receptionDocRef struct {
	ClaveAcceso string       `xml:"claveAcceso"`
	Mensajes    []sriMessage `xml:"mensajes>mensaje"`
}

type sriMessage struct {
	Identificador        string `xml:"identificador"`
	Mensaje              string `xml:"mensaje"`
	InformacionAdicional string `xml:"informacionAdicional"`
	Tipo                 string `xml:"tipo"`
}

func (m sriMessage) format() string {
	return pkgsri.FormatMessage(strings.TrimSpace(m.Tipo), strings.TrimSpace(m.Mensaje),
		strings.TrimSpace(m.InformacionAdicional), strings.TrimSpace(m.Identificador))
}

type authorizationResponse struct {
	ClaveAccesoConsultada string          `xml:"claveAccesoConsultada"`
	NumeroComprobantes    string          `xml:"numeroComprobantes"`
	Autorizaciones        []authorization `xml:"autorizaciones>autorizacion"`
}

type authorization struct {
	Estado             string       `xml:"estado"`
	NumeroAutorizacion string       `xml:"numeroAutorizacion"`
	FechaAutorizacion  string       `xml:"fechaAutorizacion"`
	Ambiente           string       `xml:"ambiente"`
	Comprobante        string       `xml:"comprobante"`
	Mensajes           []sriMessage `xml:"mensajes>mensaje"`
}

// ── Submit ────────────────────────────────────────────────────────────────────

// Submit envía el comprobante firmado a RecepcionComprobantesOffline.
func (c *SOAPAuthorityClient) Submit(ctx context.Context, signedDocument []byte) pkgsri.SubmissionResult {
	body := &validarComprobanteBody{XML: base64.StdEncoding.EncodeToString(signedDocument)}
	raw, err := c.call(ctx, c.endpoints.Reception, nsReception, body)
	if err != nil {
		c.logger.Warn().Err(err).Msg("recepción: error de conexión")
		return pkgsri.SubmissionResult{
			State:    pkgsri.SubmissionConnectionError,
			Messages: []string{err.Error()},
		}
	}
	return parseReception(raw)
}

func parseReception(raw []byte) pkgsri.SubmissionResult {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return pkgsri.SubmissionResult{
			State:    pkgsri.SubmissionConnectionError,
			Messages: []string{fmt.Sprintf("respuesta no interpretable: %v: %s", err, string(raw))},
			Raw:      string(raw),
		}
	}
	if env.Body.Fault != nil {
		return pkgsri.SubmissionResult{
			State:    pkgsri.SubmissionConnectionError,
			Messages: []string{fmt.Sprintf("SOAP fault %s: %s", env.Body.Fault.FaultCode, env.Body.Fault.FaultString)},
			Raw:      string(raw),
		}
	}
	resp := env.Body.Reception
	if resp == nil {
		return pkgsri.SubmissionResult{
			State:    pkgsri.SubmissionReturned,
			Messages: []string{string(raw)},
			Raw:      string(raw),
		}
	}

	var messages []string
	for _, comp := range resp.Comprobantes {
		for _, m := range comp.Mensajes {
			messages = append(messages, m.format())
		}
	}

	if strings.EqualFold(strings.TrimSpace(resp.Estado), sriReceived) {
		return pkgsri.SubmissionResult{State: pkgsri.SubmissionReceived, Messages: messages, Raw: string(raw)}
	}
	if len(messages) == 0 {
		messages = []string{string(raw)}
	}
	return pkgsri.SubmissionResult{State: pkgsri.SubmissionReturned, Messages: messages, Raw: string(raw)}
}

// ── Poll ──────────────────────────────────────────────────────────────────────

// Poll consulta AutorizacionComprobantesOffline por clave de acceso.
func (c *SOAPAuthorityClient) Poll(ctx context.Context, accessKey string) pkgsri.AuthorizationResult {
	body := &autorizacionComprobanteBody{ClaveAcceso: accessKey}
	raw, err := c.call(ctx, c.endpoints.Authorization, nsAuthorization, body)
	if err != nil {
		c.logger.Warn().Err(err).Str("clave_acceso", accessKey).Msg("autorización: error de conexión")
		return pkgsri.AuthorizationResult{State: pkgsri.AuthorizationError, ErrorMessage: err.Error()}
	}
	return parseAuthorization(raw)
}

func parseAuthorization(raw []byte) pkgsri.AuthorizationResult {
	env, err := decodeEnvelope(raw)
	if err != nil {
		if pkgsri.ContainsInProcessMarker(string(raw)) {
			return pkgsri.AuthorizationResult{State: pkgsri.AuthorizationInProcess, ErrorMessage: string(raw)}
		}
		return pkgsri.AuthorizationResult{
			State:        pkgsri.AuthorizationError,
			ErrorMessage: fmt.Sprintf("respuesta no interpretable: %v", err),
		}
	}
	if env.Body.Fault != nil {
		msg := fmt.Sprintf("SOAP fault %s: %s", env.Body.Fault.FaultCode, env.Body.Fault.FaultString)
		if pkgsri.ContainsInProcessMarker(msg) {
			return pkgsri.AuthorizationResult{State: pkgsri.AuthorizationInProcess, ErrorMessage: msg}
		}
		return pkgsri.AuthorizationResult{State: pkgsri.AuthorizationError, ErrorMessage: msg}
	}

	resp := env.Body.Authorization
	if inProcess(raw, resp) {
		msg := "EN PROCESAMIENTO"
		if resp != nil && len(resp.Autorizaciones) > 0 {
			msg = joinMessages(resp.Autorizaciones[0].Mensajes, msg)
		}
		return pkgsri.AuthorizationResult{State: pkgsri.AuthorizationInProcess, ErrorMessage: msg}
	}

	if resp == nil || len(resp.Autorizaciones) == 0 {
		return pkgsri.AuthorizationResult{State: pkgsri.AuthorizationNotFound, ErrorMessage: "No existe"}
	}

	// Si hay varias, prevalece una autorizada.
	auth := resp.Autorizaciones[0]
	for _, a := range resp.Autorizaciones {
		if strings.EqualFold(strings.TrimSpace(a.Estado), sriAuthorized) {
			auth = a
			break
		}
	}

	estado := strings.ToUpper(strings.TrimSpace(auth.Estado))
	switch estado {
	case sriAuthorized:
		return pkgsri.AuthorizationResult{
			State:               pkgsri.AuthorizationAuthorized,
			Document:            strings.TrimSpace(auth.Comprobante),
			AuthorizationNumber: strings.TrimSpace(auth.NumeroAutorizacion),
			AuthorizedAt:        parseAuthorizedAt(auth.FechaAutorizacion),
		}
	case sriReturned:
		return pkgsri.AuthorizationResult{State: pkgsri.AuthorizationReturned, ErrorMessage: joinMessages(auth.Mensajes, "Devuelta")}
	case sriNotAuthorize, sriRejected, "RECHAZADO":
		return pkgsri.AuthorizationResult{State: pkgsri.AuthorizationRejected, ErrorMessage: joinMessages(auth.Mensajes, "No autorizado")}
	default:
		return pkgsri.AuthorizationResult{
			State:        pkgsri.AuthorizationError,
			ErrorMessage: joinMessages(auth.Mensajes, "estado desconocido: "+auth.Estado),
		}
	}
}

// inProcess busca el marcador en estado y mensajes de cada autorización. El
// comprobante embebido se excluye: un rubro podría contener el texto.
func inProcess(raw []byte, resp *authorizationResponse) bool {
	if resp == nil || len(resp.Autorizaciones) == 0 {
		return pkgsri.ContainsInProcessMarker(string(raw))
	}
	for _, a := range resp.Autorizaciones {
		if pkgsri.ContainsInProcessMarker(a.Estado) {
			return true
		}
		for _, m := range a.Mensajes {
			if pkgsri.ContainsInProcessMarker(m.format()) {
				return true
			}
		}
	}
	return false
}

// ── Transporte ────────────────────────────────────────────────────────────────

func (c *SOAPAuthorityClient) call(ctx context.Context, url, ns string, content interface{}) ([]byte, error) {
	envelope := soapEnvelope{
		XmlnsSoap: soapNS,
		XmlnsEc:   ns,
		Body:      soapBody{Content: content},
	}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("soap: timeout o cancelación: %w", ctx.Err())
		}
		return nil, fmt.Errorf("soap: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("soap: leer respuesta: %w", err)
	}
	// Los faults llegan con 500 y cuerpo SOAP: se dejan pasar para clasificarlos.
	if resp.StatusCode >= 400 && !bytes.Contains(raw, []byte("Fault")) {
		return nil, fmt.Errorf("soap: HTTP %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}
	return raw, nil
}

func decodeEnvelope(raw []byte) (*responseEnvelope, error) {
	var env responseEnvelope
	dec := xml.NewDecoder(bytes.NewReader(raw))
	// El SRI a veces responde en ISO-8859-1.
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		if strings.EqualFold(charset, "ISO-8859-1") || strings.EqualFold(charset, "ISO8859-1") {
			return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
		}
		return input, nil
	}
	if err := dec.Decode(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

func joinMessages(msgs []sriMessage, fallback string) string {
	if len(msgs) == 0 {
		return fallback
	}
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.format())
	}
	return strings.Join(out, " | ")
}

func parseAuthorizedAt(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range authorizedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
