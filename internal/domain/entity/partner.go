package entity

import (
	"strings"
	"time"
)

// Partner socio de la junta (comprador en el comprobante).
type Partner struct {
	ID                 string
	FirstNames         string
	LastNames          string
	IdentificationType string // CEDULA, RUC, PASAPORTE (texto libre histórico)
	Identification     string
	Email              string
	Phone              string
	Address            string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FullName nombres y apellidos.
func (p *Partner) FullName() string {
	return strings.TrimSpace(p.FirstNames + " " + p.LastNames)
}

// HasValidEmail verificación mínima antes de notificar.
func (p *Partner) HasValidEmail() bool {
	e := strings.TrimSpace(p.Email)
	at := strings.Index(e, "@")
	return at > 0 && at < len(e)-1
}
