package sri

import (
	"context"
	"errors"
	"fmt"
)

// Signer firma el XML del comprobante y devuelve el XML con ds:Signature.
// Los errores son *SigningError; usar errors.Is contra los Err* de abajo.
type Signer interface {
	Sign(ctx context.Context, document []byte, accessKey string) ([]byte, error)
}

// Tipos de falla de firma.
var (
	ErrSigningTimeout       = errors.New("sri: tiempo de firma excedido")
	ErrCertificateCorrupt   = errors.New("sri: certificado de firma corrupto o ausente")
	ErrSigningProcessFailed = errors.New("sri: el proceso de firma falló")
)

// SigningError falla de firma con su clasificación y la salida de diagnóstico del firmador.
type SigningError struct {
	Kind   error
	Detail string
	Err    error
}

func (e *SigningError) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is permite errors.Is(err, ErrSigningTimeout), etc.
func (e *SigningError) Is(target error) bool { return target == e.Kind }

func (e *SigningError) Unwrap() error { return e.Err }

// NewSigningError construye un SigningError.
func NewSigningError(kind error, detail string, cause error) *SigningError {
	return &SigningError{Kind: kind, Detail: detail, Err: cause}
}
