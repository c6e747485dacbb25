package sri

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Longitudes de la clave de acceso (Ficha Técnica SRI, comprobantes offline).
const (
	AccessKeyLength = 49
	payloadLength   = 48
	randomLength    = 8
)

// ErrInvalidKeyLength la carga útil no tiene exactamente 48 dígitos.
var ErrInvalidKeyLength = errors.New("sri: la clave de acceso debe tener 48 dígitos antes del verificador")

// ErrInvalidAccessKey clave de 49 dígitos con verificador incorrecto o caracteres no numéricos.
var ErrInvalidAccessKey = errors.New("sri: clave de acceso inválida")

// pesos del módulo 11, aplicados de derecha a izquierda.
var mod11Weights = [6]int{2, 3, 4, 5, 6, 7}

// AccessKeyGenerator construye la clave de acceso de 49 dígitos.
type AccessKeyGenerator struct {
	issuer       IssuerConfig
	randomDigits func(n int) (string, error)
}

// AccessKeyOption personaliza el generador (principalmente para tests).
type AccessKeyOption func(*AccessKeyGenerator)

// WithRandomDigits reemplaza la fuente del código numérico de 8 dígitos.
func WithRandomDigits(fn func(n int) (string, error)) AccessKeyOption {
	return func(g *AccessKeyGenerator) { g.randomDigits = fn }
}

// NewAccessKeyGenerator crea el generador con la configuración del emisor.
func NewAccessKeyGenerator(issuer IssuerConfig, opts ...AccessKeyOption) *AccessKeyGenerator {
	g := &AccessKeyGenerator{issuer: issuer, randomDigits: cryptoDigits}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate arma la clave: fecha(8) + tipo(2) + RUC(13) + ambiente(1) + serie(6) +
// secuencial(9) + código numérico(8) + tipo emisión(1) + verificador(1).
// El código numérico es aleatorio: el llamador debe persistir la clave de inmediato.
func (g *AccessKeyGenerator) Generate(emission time.Time, sequential string) (string, error) {
	random, err := g.randomDigits(randomLength)
	if err != nil {
		return "", fmt.Errorf("sri: código numérico: %w", err)
	}
	var sb strings.Builder
	sb.Grow(AccessKeyLength)
	sb.WriteString(emission.Format("02012006"))
	sb.WriteString(DocTypeInvoice)
	sb.WriteString(g.issuer.RUC)
	sb.WriteString(g.issuer.Environment)
	sb.WriteString(g.issuer.Series())
	sb.WriteString(PadSequential(sequential))
	sb.WriteString(random)
	sb.WriteString(EmissionTypeNormal)

	payload := sb.String()
	digit, err := ComputeCheckDigit(payload)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", payload, digit), nil
}

// ComputeCheckDigit calcula el dígito verificador módulo 11 de una carga de 48 dígitos.
// 11 - (suma mod 11); 11 → 0 y 10 → 1.
func ComputeCheckDigit(payload string) (int, error) {
	if len(payload) != payloadLength || !isDigits(payload) {
		return 0, fmt.Errorf("%w: longitud %d", ErrInvalidKeyLength, len(payload))
	}
	sum := 0
	for i := 0; i < payloadLength; i++ {
		d := int(payload[payloadLength-1-i] - '0')
		sum += d * mod11Weights[i%len(mod11Weights)]
	}
	n := 11 - sum%11
	switch n {
	case 11:
		return 0, nil
	case 10:
		return 1, nil
	}
	return n, nil
}

// ValidateAccessKey verifica longitud, dígitos y verificador.
func ValidateAccessKey(key string) error {
	if len(key) != AccessKeyLength || !isDigits(key) {
		return ErrInvalidAccessKey
	}
	digit, err := ComputeCheckDigit(key[:payloadLength])
	if err != nil {
		return err
	}
	if int(key[payloadLength]-'0') != digit {
		return fmt.Errorf("%w: verificador esperado %d", ErrInvalidAccessKey, digit)
	}
	return nil
}

// IsAccessKey indica si key es una clave de acceso completa y válida (no un marcador).
func IsAccessKey(key string) bool {
	return ValidateAccessKey(key) == nil
}

// PadSequential rellena con ceros a la izquierda hasta 9 posiciones.
func PadSequential(sequential string) string {
	if len(sequential) >= 9 {
		return sequential
	}
	return strings.Repeat("0", 9-len(sequential)) + sequential
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func cryptoDigits(n int) (string, error) {
	max := big.NewInt(10)
	buf := make([]byte, n)
	for i := range buf {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + v.Int64())
	}
	return string(buf), nil
}
