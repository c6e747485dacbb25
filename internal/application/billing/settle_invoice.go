package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/cobros-sri/internal/application/dto"
	"github.com/jhoicas/cobros-sri/internal/domain"
	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	"github.com/jhoicas/cobros-sri/internal/domain/repository"
	domainsri "github.com/jhoicas/cobros-sri/internal/domain/sri"
)

// IdempotencyTTL vigencia de la respuesta cacheada de un cobro.
const IdempotencyTTL = 24 * time.Hour

// Canal que entra en la clave de idempotencia del cobro en ventanilla.
const counterChannel = "counter_channel"

// SettlementKey clave de idempotencia: sha256(factura|suma|AAAAMMDD|canal).
// Dos cobros iguales el mismo día sobre la misma factura producen la misma clave.
func SettlementKey(invoiceID string, amount decimal.Decimal, day time.Time, channel string) string {
	raw := fmt.Sprintf("%s|%s|%s|%s", invoiceID, amount.StringFixed(2), day.Format("20060102"), channel)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// DocumentURL ruta del RIDE de una factura.
func DocumentURL(invoiceID string) string {
	return "/api/invoices/" + invoiceID + "/ride"
}

// SettleInvoiceUseCase cobro en ventanilla: valida, registra el pago, marca la
// factura PAID y programa el envío al SRI después del commit.
type SettleInvoiceUseCase struct {
	txRunner  SettlementTxRunner
	invoices  repository.InvoiceRepository
	payments  repository.PaymentRepository
	cache     IdempotencyCache
	scheduler SubmissionScheduler
	logger    zerolog.Logger
	now       func() time.Time
}

// NewSettleInvoiceUseCase construye el caso de uso.
func NewSettleInvoiceUseCase(
	txRunner SettlementTxRunner,
	invoices repository.InvoiceRepository,
	payments repository.PaymentRepository,
	cache IdempotencyCache,
	scheduler SubmissionScheduler,
	logger zerolog.Logger,
) *SettleInvoiceUseCase {
	return &SettleInvoiceUseCase{
		txRunner:  txRunner,
		invoices:  invoices,
		payments:  payments,
		cache:     cache,
		scheduler: scheduler,
		logger:    logger.With().Str("component", "settle_invoice").Logger(),
		now:       time.Now,
	}
}

// Settle registra el cobro y devuelve el cuerpo JSON de la respuesta. Un
// reintento idéntico devuelve exactamente los mismos bytes sin tocar la base.
//
// Retorna:
//   - domain.ErrInvalidInput             si no hay pagos o algún monto/medio es inválido.
//   - domain.ErrNotFound                 si la factura no existe.
//   - domain.ErrInvoiceVoid              si la factura está anulada.
//   - *domain.PendingVerificationError   si hay transferencias sin validar.
//   - *domain.InsufficientFundsError     si lo recibido no cubre el total.
func (uc *SettleInvoiceUseCase) Settle(ctx context.Context, invoiceID, operatorID string, in dto.SettlementRequest) ([]byte, error) {
	entries, received, err := parseEntries(in)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	log := uc.logger.With().Str("invoice_id", invoiceID).Str("operator", operatorID).Logger()

	// ── 1. Idempotencia ───────────────────────────────────────────────────────
	key := SettlementKey(invoiceID, received, now, counterChannel)
	if cached, ok, err := uc.cache.Get(ctx, key); err != nil {
		log.Warn().Err(err).Msg("caché de idempotencia no disponible")
	} else if ok {
		log.Info().Msg("cobro repetido, se devuelve la respuesta original")
		return cached, nil
	}

	// ── 2. Factura ────────────────────────────────────────────────────────────
	inv, err := uc.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("cobro: obtener factura: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if inv.IsPaid() {
		if body, ok := uc.cachedResponse(ctx, key); ok {
			return body, nil
		}
		// Pagada por otra vía (otro monto u otro cajero): no se cachea.
		return json.Marshal(alreadyPaidResponse(inv))
	}
	if err := domainsri.CheckPayable(inv); err != nil {
		return nil, err
	}

	// ── 3. Transacción ──────────────────────────────────────────────────────
	// La respuesta del cobro se cachea antes del commit: quien espere el
	// bloqueo de la fila ya la encuentra al verla pagada.
	var (
		body      []byte
		paidAt    string
		scheduled bool
	)
	err = uc.txRunner.RunSettlement(ctx, func(invoiceRepo repository.InvoiceRepository, paymentRepo repository.PaymentRepository) error {
		locked, err := invoiceRepo.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("cobro: bloquear factura: %w", err)
		}
		if locked == nil {
			return domain.ErrNotFound
		}
		if locked.IsPaid() {
			if cached, ok := uc.cachedResponse(ctx, key); ok {
				body = cached
				return nil
			}
			body, err = json.Marshal(alreadyPaidResponse(locked))
			return err
		}
		if err := domainsri.CheckPayable(locked); err != nil {
			return err
		}

		pending, err := paymentRepo.HasPendingTransfers(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("cobro: transferencias pendientes: %w", err)
		}
		if pending {
			return &domain.PendingVerificationError{InvoiceID: invoiceID}
		}
		prior, err := paymentRepo.SumValidatedTransfers(ctx, invoiceID)
		if err != nil {
			return fmt.Errorf("cobro: transferencias validadas: %w", err)
		}
		if err := domainsri.CheckSettlement(locked.Total, prior, received); err != nil {
			return err
		}

		validatedAt := now
		payment := &entity.Payment{
			ID:          uuid.New().String(),
			InvoiceID:   invoiceID,
			PartnerID:   locked.PartnerID,
			Total:       received,
			Entries:     entries,
			Channel:     entity.ChannelCounter,
			Validated:   true,
			ValidatedBy: operatorID,
			ValidatedAt: &validatedAt,
			CreatedAt:   now,
		}
		if err := paymentRepo.Register(ctx, payment); err != nil {
			return fmt.Errorf("cobro: registrar pago: %w", err)
		}
		if err := domainsri.MarkPaid(locked, now); err != nil {
			return err
		}
		if err := invoiceRepo.Save(ctx, locked); err != nil {
			return fmt.Errorf("cobro: guardar factura: %w", err)
		}

		resp := settlementResponse(locked, domainsri.StatusSRIPending,
			"Cobro registrado. El SRI está procesando la factura en segundo plano.",
			prior.Add(received))
		body, err = json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("cobro: serializar respuesta: %w", err)
		}
		if err := uc.cache.Put(ctx, key, body, IdempotencyTTL); err != nil {
			log.Warn().Err(err).Msg("no se pudo cachear la respuesta del cobro")
		}
		paidAt = resp.PaidAmount
		scheduled = true
		return nil
	})
	if err != nil {
		if scheduled {
			// El commit falló después de cachear: la respuesta no vale.
			if derr := uc.cache.Delete(context.WithoutCancel(ctx), key); derr != nil {
				log.Warn().Err(derr).Msg("no se pudo descartar la respuesta cacheada")
			}
		}
		var short *domain.InsufficientFundsError
		if errors.As(err, &short) {
			log.Info().Str("faltante", short.Shortfall.StringFixed(2)).Msg("cobro rechazado por monto insuficiente")
		}
		return nil, err
	}

	// ── 4. Envío al SRI (después del commit) ──────────────────────────────────
	if scheduled {
		if err := uc.scheduler.ScheduleSubmission(ctx, invoiceID); err != nil {
			// La reconciliación recoge las facturas pagadas que no se encolaron.
			log.Error().Err(err).Msg("no se pudo programar el envío al SRI")
		}
		log.Info().Str("pagado", paidAt).Msg("cobro registrado")
	}
	return body, nil
}

// cachedResponse respuesta previa del mismo cobro, si la hay.
func (uc *SettleInvoiceUseCase) cachedResponse(ctx context.Context, key string) ([]byte, bool) {
	body, ok, err := uc.cache.Get(ctx, key)
	if err != nil {
		uc.logger.Warn().Err(err).Msg("caché de idempotencia no disponible")
		return nil, false
	}
	return body, ok
}

func parseEntries(in dto.SettlementRequest) ([]entity.PaymentEntry, decimal.Decimal, error) {
	if len(in.Payments) == 0 {
		return nil, decimal.Zero, fmt.Errorf("%w: debe incluir al menos un pago", domain.ErrInvalidInput)
	}
	entries := make([]entity.PaymentEntry, 0, len(in.Payments))
	total := decimal.Zero
	for i, p := range in.Payments {
		method, ok := entity.ParsePaymentMethod(p.Method)
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("%w: medio de pago %q no soportado", domain.ErrInvalidInput, p.Method)
		}
		if !p.Amount.IsPositive() {
			return nil, decimal.Zero, fmt.Errorf("%w: el monto del pago %d debe ser mayor a cero", domain.ErrInvalidInput, i+1)
		}
		amount := p.Amount.Round(2)
		entries = append(entries, entity.PaymentEntry{
			ID:         uuid.New().String(),
			Method:     method,
			Amount:     amount,
			Reference:  p.Reference,
			SourceBank: p.SourceBank,
		})
		total = total.Add(amount)
	}
	return entries, total, nil
}

func alreadyPaidResponse(inv *entity.Invoice) *dto.SettlementResponse {
	status := domainsri.SettledResponseStatus(inv.FiscalState)
	var message string
	switch status {
	case domainsri.StatusOK:
		message = "Factura previamente autorizada."
	case domainsri.StatusSRIError:
		message = "Factura pagada, pero el envío al SRI falló previamente."
	default:
		message = "Factura pagada, SRI pendiente."
	}
	return settlementResponse(inv, status, message, inv.Total)
}

func settlementResponse(inv *entity.Invoice, status domainsri.ResponseStatus, message string, paid decimal.Decimal) *dto.SettlementResponse {
	fiscal := inv.FiscalState
	if fiscal == "" {
		fiscal = entity.FiscalPendingSignature
	}
	fiscalMessage := inv.AuthorityMessage
	if fiscalMessage == "" {
		fiscalMessage = message
	}
	resp := &dto.SettlementResponse{
		Status:     string(status),
		PaidAmount: paid.StringFixed(2),
		Message:    message,
		Invoice: dto.SettlementInvoice{
			ID:                 inv.ID,
			FinancialState:     string(inv.FinancialState),
			FiscalState:        string(fiscal),
			FiscalErrorMessage: fiscalMessage,
		},
	}
	if status == domainsri.StatusOK {
		resp.DocumentURL = DocumentURL(inv.ID)
	}
	return resp
}
