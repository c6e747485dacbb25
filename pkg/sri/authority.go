package sri

import (
	"context"
	"strings"
	"time"
)

// SubmissionState resultado de RecepcionComprobantesOffline.validarComprobante.
type SubmissionState string

const (
	SubmissionReceived        SubmissionState = "RECEIVED"
	SubmissionReturned        SubmissionState = "RETURNED"
	SubmissionConnectionError SubmissionState = "CONNECTION_ERROR"
)

// AuthorizationState resultado de AutorizacionComprobantesOffline.autorizacionComprobante.
type AuthorizationState string

const (
	AuthorizationAuthorized AuthorizationState = "AUTHORIZED"
	AuthorizationInProcess  AuthorizationState = "IN_PROCESS"
	AuthorizationReturned   AuthorizationState = "RETURNED"
	AuthorizationRejected   AuthorizationState = "REJECTED"
	AuthorizationNotFound   AuthorizationState = "NOT_FOUND"
	AuthorizationError      AuthorizationState = "ERROR"
)

// SubmissionResult respuesta clasificada del envío.
type SubmissionResult struct {
	State    SubmissionState
	Messages []string
	Raw      string
}

// StillProcessing indica si la devolución trae el marcador de "en procesamiento".
func (r SubmissionResult) StillProcessing() bool {
	if ContainsInProcessMarker(r.Raw) {
		return true
	}
	for _, m := range r.Messages {
		if ContainsInProcessMarker(m) {
			return true
		}
	}
	return false
}

// AlreadyRegistered indica ID:43 (clave ya registrada): el comprobante ya fue recibido antes.
func (r SubmissionResult) AlreadyRegistered() bool {
	for _, m := range r.Messages {
		if strings.Contains(m, MarkerKeyRegistered) {
			return true
		}
	}
	return false
}

// Message une los mensajes con " | ".
func (r SubmissionResult) Message() string {
	return strings.Join(r.Messages, " | ")
}

// AuthorizationResult respuesta clasificada de la consulta de autorización.
type AuthorizationResult struct {
	State               AuthorizationState
	Document            string
	AuthorizationNumber string
	AuthorizedAt        *time.Time
	ErrorMessage        string
}

// Authority puerto hacia los web services del SRI. Nunca devuelve error:
// las fallas de transporte se clasifican en el resultado.
type Authority interface {
	Submit(ctx context.Context, signedDocument []byte) SubmissionResult
	Poll(ctx context.Context, accessKey string) AuthorizationResult
}

// ContainsInProcessMarker detecta "ID:70" o "EN PROCESAMIENTO" en cualquier texto.
func ContainsInProcessMarker(text string) bool {
	if text == "" {
		return false
	}
	upper := strings.ToUpper(text)
	return strings.Contains(upper, MarkerInProcessID) || strings.Contains(upper, MarkerInProcessText)
}

// FormatMessage arma "[tipo] texto (info) [ID:código]".
func FormatMessage(kind, text, info, id string) string {
	if kind == "" {
		kind = "INFO"
	}
	if text == "" {
		text = "Sin mensaje"
	}
	msg := "[" + kind + "] " + text
	if info != "" {
		msg += " (" + info + ")"
	}
	if id != "" {
		msg += " [ID:" + id + "]"
	}
	return msg
}
