// Package notify envía al socio el comprobante autorizado por correo.
package notify

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	appsri "github.com/jhoicas/cobros-sri/internal/application/sri"
)

// Sender lo que usa el notificador de *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Config datos SMTP.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// MailNotifier implementa sri.Notifier con SMTP.
type MailNotifier struct {
	sender Sender
	from   string
	logger zerolog.Logger
}

var _ appsri.Notifier = (*MailNotifier)(nil)

// NewMailNotifier construye el notificador sobre un gomail.Dialer.
func NewMailNotifier(cfg Config, logger zerolog.Logger) *MailNotifier {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return NewMailNotifierWithSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password), from, logger)
}

// NewMailNotifierWithSender permite inyectar el transporte.
func NewMailNotifierWithSender(sender Sender, from string, logger zerolog.Logger) *MailNotifier {
	return &MailNotifier{sender: sender, from: from, logger: logger.With().Str("component", "mail_notifier").Logger()}
}

// NotifyAuthorized adjunta el XML autorizado y, si existe, el RIDE. Un correo
// vacío o mal formado se omite con advertencia: no es una falla del circuito.
func (n *MailNotifier) NotifyAuthorized(ctx context.Context, notice appsri.AuthorizedNotice) error {
	inv, partner := notice.Invoice, notice.Partner
	if inv == nil || partner == nil {
		return fmt.Errorf("notificación sin factura o socio")
	}
	if !partner.HasValidEmail() {
		n.logger.Warn().Str("invoice_id", inv.ID).Str("partner_id", partner.ID).
			Str("email", partner.Email).Msg("socio sin correo válido, notificación omitida")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetAddressHeader("To", partner.Email, partner.FullName())
	m.SetHeader("Subject", "Factura electrónica autorizada "+inv.AccessKey)
	m.SetBody("text/html", body(notice))

	if inv.AuthorizedDocument != "" {
		attach(m, inv.AccessKey+".xml", []byte(inv.AuthorizedDocument))
	}
	if len(notice.RIDE) > 0 {
		attach(m, "RIDE_"+inv.AccessKey+".pdf", notice.RIDE)
	}

	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("enviar correo a %s: %w", partner.Email, err)
	}
	n.logger.Info().Str("invoice_id", inv.ID).Str("email", partner.Email).Msg("comprobante autorizado enviado")
	return nil
}

func attach(m *gomail.Message, name string, data []byte) {
	m.Attach(name, gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}))
}

func body(notice appsri.AuthorizedNotice) string {
	inv := notice.Invoice
	authorizedAt := ""
	if inv.AuthorizedAt != nil {
		authorizedAt = inv.AuthorizedAt.Format("02/01/2006 15:04")
	}
	return fmt.Sprintf(`<p>Estimado/a %s,</p>
<p>Su factura por <b>$%s</b> fue autorizada por el SRI el %s.</p>
<p>Clave de acceso: <code>%s</code></p>
<p>Adjuntamos el comprobante electrónico.</p>`,
		notice.Partner.FullName(), inv.Total.StringFixed(2), authorizedAt, inv.AccessKey)
}
