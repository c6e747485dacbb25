package sri

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/cobros-sri/internal/domain"
	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	"github.com/jhoicas/cobros-sri/internal/domain/repository"
	domainsri "github.com/jhoicas/cobros-sri/internal/domain/sri"
	pkgsri "github.com/jhoicas/cobros-sri/pkg/sri"
)

// ErrStillProcessing el SRI aún no resuelve la autorización.
var ErrStillProcessing = errors.New("sri: comprobante en procesamiento")

// Mensaje que queda en la factura mientras el SRI procesa.
const inProcessMessage = "[SRI] Aún procesando. Consultar luego."

// PipelineDeps dependencias de las dos fases del circuito.
type PipelineDeps struct {
	Invoices  repository.InvoiceRepository
	Partners  repository.PartnerRepository
	Sequences repository.SequenceProvider
	Keys      *pkgsri.AccessKeyGenerator
	Builder   DocumentBuilder
	Signer    pkgsri.Signer
	Authority pkgsri.Authority
	Lock      Lock
	// Opcionales: nil desactiva el efecto posterior a la autorización.
	Notifier Notifier
	Archiver Archiver
	Ride     RideRenderer
	Metrics  Metrics
}

// Pipeline ejecuta la fase 1 (firma y envío) y la fase 2 (consulta) de una factura.
// Ambas fases toman el candado lock:sri:<id> y lo liberan en toda salida.
type Pipeline struct {
	deps     PipelineDeps
	policies Policies
	logger   zerolog.Logger
	now      func() time.Time
}

// NewPipeline construye el pipeline.
func NewPipeline(deps PipelineDeps, policies Policies, logger zerolog.Logger) *Pipeline {
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	return &Pipeline{
		deps:     deps,
		policies: policies,
		logger:   logger.With().Str("component", "sri_pipeline").Logger(),
		now:      time.Now,
	}
}

// SubmitInvoice fase 1: clave de acceso → XML → firma → envío a recepción.
func (p *Pipeline) SubmitInvoice(ctx context.Context, invoiceID string) Result {
	log := p.logger.With().Str("invoice_id", invoiceID).Str("phase", "submit").Logger()
	retry := p.policies.Submit.Delay

	acquired, err := p.deps.Lock.Acquire(ctx, LockKey(invoiceID), LockTTL)
	if err != nil {
		return Retry(retry, fmt.Errorf("candado: %w", err))
	}
	if !acquired {
		// Otra ejecución ya está enviando esta factura.
		log.Info().Msg("candado ocupado, envío omitido")
		return Ok()
	}
	defer p.release(invoiceID, log)

	inv, err := p.deps.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return Retry(retry, fmt.Errorf("cargar factura: %w", err))
	}
	if inv == nil {
		return Fatal(fmt.Errorf("factura %s: %w", invoiceID, domain.ErrNotFound))
	}

	switch inv.FiscalState {
	case entity.FiscalAuthorized:
		log.Info().Msg("factura ya autorizada")
		return Ok()
	case entity.FiscalPendingAuthority:
		// Ya fue recibida: no se reenvía, sólo se consulta.
		return PollAfter(p.policies.PollAfterSend)
	}
	if !inv.IsPaid() {
		return Fatal(fmt.Errorf("factura %s no está pagada: %w", invoiceID, domain.ErrBusinessRule))
	}

	partner, err := p.deps.Partners.GetByID(ctx, inv.PartnerID)
	if err != nil {
		return Retry(retry, fmt.Errorf("cargar socio: %w", err))
	}
	if partner == nil {
		return Fatal(fmt.Errorf("socio %s: %w", inv.PartnerID, domain.ErrNotFound))
	}

	// ═══ 1. Clave de acceso ═══════════════════════════════════════════════
	if err := domainsri.Transition(inv, entity.FiscalPendingSignature, "", "", p.now()); err != nil {
		return Fatal(err)
	}
	if domainsri.NeedsAccessKey(inv) && domainsri.CanRegenerateAccessKey(inv) {
		if inv.Sequential == 0 {
			seq, err := p.deps.Sequences.Next(ctx, pkgsri.DocTypeInvoice)
			if err != nil {
				return Retry(retry, fmt.Errorf("secuencial: %w", err))
			}
			inv.Sequential = seq
		}
		key, err := p.deps.Keys.Generate(inv.IssueDate, strconv.FormatInt(inv.Sequential, 10))
		if err != nil {
			return Retry(retry, fmt.Errorf("clave de acceso: %w", err))
		}
		inv.AccessKey = key
		log.Info().Str("clave_acceso", key).Int64("secuencial", inv.Sequential).Msg("clave de acceso generada")
	}
	// La clave se persiste antes de firmar: un reintento debe reutilizarla.
	if err := p.deps.Invoices.Save(ctx, inv); err != nil {
		return Retry(retry, fmt.Errorf("guardar clave de acceso: %w", err))
	}

	// ═══ 2. XML ═══════════════════════════════════════════════════════════
	document, err := p.deps.Builder.Build(inv, partner)
	if err != nil {
		log.Error().Err(err).Msg("no se pudo construir el XML")
		p.recordFailure(ctx, inv, entity.FiscalCodeInternal, err.Error(), log)
		return Retry(retry, fmt.Errorf("construir XML: %w", err))
	}

	// ═══ 3. Firma ═════════════════════════════════════════════════════════
	signed, err := p.deps.Signer.Sign(ctx, document, inv.AccessKey)
	if err != nil {
		code := domainsri.ClassifySigningFailure(err)
		log.Error().Err(err).Str("code", code).Msg("falla de firma")
		p.recordFailure(ctx, inv, code, err.Error(), log)
		return Retry(retry, fmt.Errorf("firma: %w", err))
	}

	// ═══ 4. Envío a recepción ═════════════════════════════════════════════
	res := p.deps.Authority.Submit(ctx, signed)
	p.deps.Metrics.SubmissionClassified(string(res.State))
	log.Info().Str("estado", string(res.State)).Str("mensaje", res.Message()).Msg("respuesta de recepción")

	switch {
	case res.StillProcessing():
		if err := p.persist(ctx, inv, entity.FiscalPendingAuthority, "", inProcessMessage); err != nil {
			return Retry(retry, err)
		}
		return PollAfter(p.policies.PollInProcess)

	case res.State == pkgsri.SubmissionReceived || res.AlreadyRegistered():
		if err := p.persist(ctx, inv, entity.FiscalPendingAuthority, "", ""); err != nil {
			return Retry(retry, err)
		}
		return PollAfter(p.policies.PollAfterSend)

	case res.State == pkgsri.SubmissionReturned:
		if err := p.persist(ctx, inv, entity.FiscalReturned, "", res.Message()); err != nil {
			return Retry(retry, err)
		}
		log.Warn().Str("mensaje", res.Message()).Msg("comprobante devuelto por el SRI")
		return Ok()

	default:
		p.recordFailure(ctx, inv, entity.FiscalCodeConnection, res.Message(), log)
		return Retry(retry, fmt.Errorf("recepción SRI: %s", res.Message()))
	}
}

// PollAuthorization fase 2: consulta la autorización de un comprobante recibido.
func (p *Pipeline) PollAuthorization(ctx context.Context, invoiceID string) Result {
	log := p.logger.With().Str("invoice_id", invoiceID).Str("phase", "poll").Logger()
	retry := p.policies.Poll.Delay

	acquired, err := p.deps.Lock.Acquire(ctx, LockKey(invoiceID), LockTTL)
	if err != nil {
		return Retry(retry, fmt.Errorf("candado: %w", err))
	}
	if !acquired {
		log.Debug().Msg("candado ocupado, consulta diferida")
		return Defer(p.policies.LockContention)
	}
	defer p.release(invoiceID, log)

	inv, err := p.deps.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return Retry(retry, fmt.Errorf("cargar factura: %w", err))
	}
	if inv == nil {
		return Fatal(fmt.Errorf("factura %s: %w", invoiceID, domain.ErrNotFound))
	}
	if inv.IsAuthorized() {
		return Ok()
	}
	if inv.FiscalState != entity.FiscalPendingAuthority {
		log.Info().Str("estado", string(inv.FiscalState)).Msg("la factura no espera autorización")
		return Ok()
	}
	if !pkgsri.IsAccessKey(inv.AccessKey) {
		return Fatal(fmt.Errorf("factura %s sin clave de acceso válida: %w", invoiceID, pkgsri.ErrInvalidAccessKey))
	}

	res := p.deps.Authority.Poll(ctx, inv.AccessKey)
	p.deps.Metrics.AuthorizationClassified(string(res.State))
	log.Info().Str("estado", string(res.State)).Str("mensaje", res.ErrorMessage).Msg("respuesta de autorización")

	switch res.State {
	case pkgsri.AuthorizationAuthorized:
		if err := domainsri.Authorize(inv, res.Document, res.AuthorizationNumber, res.AuthorizedAt, p.now()); err != nil {
			return Fatal(err)
		}
		if err := p.deps.Invoices.Save(ctx, inv); err != nil {
			return Retry(retry, fmt.Errorf("guardar autorización: %w", err))
		}
		p.afterAuthorization(ctx, inv, log)
		return Ok()

	case pkgsri.AuthorizationInProcess:
		if err := p.persist(ctx, inv, entity.FiscalPendingAuthority, "", inProcessMessage); err != nil {
			return Retry(retry, err)
		}
		return Retry(retry, ErrStillProcessing)

	case pkgsri.AuthorizationReturned:
		if err := p.persist(ctx, inv, entity.FiscalReturned, "", res.ErrorMessage); err != nil {
			return Retry(retry, err)
		}
		return Ok()

	case pkgsri.AuthorizationRejected:
		if err := p.persist(ctx, inv, entity.FiscalRejected, "", res.ErrorMessage); err != nil {
			return Retry(retry, err)
		}
		return Ok()

	case pkgsri.AuthorizationNotFound:
		if err := p.persist(ctx, inv, entity.FiscalPendingAuthority, entity.FiscalCodeNotFound, res.ErrorMessage); err != nil {
			return Retry(retry, err)
		}
		return Retry(retry, fmt.Errorf("autorización no encontrada: %s", inv.AccessKey))

	default:
		if err := p.persist(ctx, inv, entity.FiscalPendingAuthority, entity.FiscalCodeConnection, res.ErrorMessage); err != nil {
			return Retry(retry, err)
		}
		return Retry(retry, fmt.Errorf("autorización SRI: %s", res.ErrorMessage))
	}
}

// afterAuthorization archivo y correo. Sus fallas sólo se registran.
func (p *Pipeline) afterAuthorization(ctx context.Context, inv *entity.Invoice, log zerolog.Logger) {
	if p.deps.Archiver != nil {
		if location, err := p.deps.Archiver.Archive(ctx, inv); err != nil {
			log.Warn().Err(err).Msg("no se pudo archivar el XML autorizado")
		} else {
			log.Info().Str("ubicacion", location).Msg("XML autorizado archivado")
		}
	}
	if p.deps.Notifier == nil {
		return
	}
	partner, err := p.deps.Partners.GetByID(ctx, inv.PartnerID)
	if err != nil || partner == nil {
		log.Warn().Err(err).Msg("socio no disponible, no se envía correo")
		return
	}
	notice := AuthorizedNotice{Invoice: inv, Partner: partner}
	if p.deps.Ride != nil {
		pdf, err := p.deps.Ride.Render(inv, partner)
		if err != nil {
			log.Warn().Err(err).Msg("no se pudo generar el RIDE")
		} else {
			notice.RIDE = pdf
		}
	}
	if err := p.deps.Notifier.NotifyAuthorized(ctx, notice); err != nil {
		log.Warn().Err(err).Msg("no se pudo notificar la autorización")
	}
}

func (p *Pipeline) persist(ctx context.Context, inv *entity.Invoice, to entity.FiscalState, code, message string) error {
	if err := domainsri.Transition(inv, to, code, message, p.now()); err != nil {
		return err
	}
	if err := p.deps.Invoices.Save(ctx, inv); err != nil {
		return fmt.Errorf("guardar estado %s: %w", to, err)
	}
	return nil
}

// recordFailure deja la factura en ERROR con su subcódigo.
func (p *Pipeline) recordFailure(ctx context.Context, inv *entity.Invoice, code, message string, log zerolog.Logger) {
	if err := p.persist(ctx, inv, entity.FiscalError, code, message); err != nil {
		log.Error().Err(err).Str("code", code).Msg("no se pudo registrar el error fiscal")
	}
}

// release usa un contexto propio: el del trabajo puede estar cancelado.
func (p *Pipeline) release(invoiceID string, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.deps.Lock.Release(ctx, LockKey(invoiceID)); err != nil {
		log.Warn().Err(err).Msg("no se pudo liberar el candado")
	}
}
