// Package memory implementa los repositorios en memoria para desarrollo y tests.
// Un Store reemplaza a Postgres con la misma semántica: RunSettlement serializa
// los cobros y sólo confirma sus escrituras si termina sin error.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	"github.com/jhoicas/cobros-sri/internal/domain/repository"
)

// Store datos compartidos por los repositorios.
type Store struct {
	txMu sync.Mutex // equivalente a SELECT ... FOR UPDATE

	mu        sync.RWMutex
	invoices  map[string]*entity.Invoice
	payments  map[string]*entity.Payment
	partners  map[string]*entity.Partner
	sequences map[string]int64
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		invoices:  map[string]*entity.Invoice{},
		payments:  map[string]*entity.Payment{},
		partners:  map[string]*entity.Partner{},
		sequences: map[string]int64{},
	}
}

// PutInvoice carga una factura (semillas y tests).
func (s *Store) PutInvoice(inv *entity.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = cloneInvoice(inv)
}

// PutPartner carga un socio.
func (s *Store) PutPartner(p *entity.Partner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.partners[p.ID] = &c
}

// PaymentsOf pagos registrados de una factura, por fecha.
func (s *Store) PaymentsOf(invoiceID string) []*entity.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Payment
	for _, p := range s.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Invoices repositorio de facturas.
func (s *Store) Invoices() repository.InvoiceRepository { return &invoiceRepo{s: s} }

// Payments repositorio de pagos.
func (s *Store) Payments() repository.PaymentRepository { return &paymentRepo{s: s} }

// Partners repositorio de socios.
func (s *Store) Partners() repository.PartnerRepository { return &partnerRepo{s: s} }

// Sequences secuenciales por tipo de comprobante.
func (s *Store) Sequences() repository.SequenceProvider { return &sequenceProvider{s: s} }

// RunSettlement ejecuta fn en exclusión mutua. Las escrituras de fn quedan
// en un área propia y sólo se aplican si fn termina bien y ctx sigue vigente;
// las escrituras de otros repositorios durante fn no se tocan.
func (s *Store) RunSettlement(ctx context.Context, fn func(
	invoiceRepo repository.InvoiceRepository,
	paymentRepo repository.PaymentRepository,
) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &txView{
		s:        s,
		invoices: map[string]*entity.Invoice{},
		payments: map[string]*entity.Payment{},
	}
	if err := fn(&txInvoiceRepo{tx: tx}, &txPaymentRepo{tx: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// txView escrituras pendientes de una liquidación.
type txView struct {
	s        *Store
	invoices map[string]*entity.Invoice
	payments map[string]*entity.Payment
}

func (t *txView) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, inv := range t.invoices {
		t.s.invoices[id] = inv
	}
	for id, p := range t.payments {
		t.s.payments[id] = p
	}
}

// paymentsOf pagos de la factura vistos desde la transacción.
func (t *txView) paymentsOf(invoiceID string) []*entity.Payment {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	var out []*entity.Payment
	for id, p := range t.s.payments {
		if _, staged := t.payments[id]; !staged && p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	for _, p := range t.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	return out
}

type txInvoiceRepo struct{ tx *txView }

func (r *txInvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	if inv, ok := r.tx.invoices[id]; ok {
		return cloneInvoice(inv), nil
	}
	return (&invoiceRepo{s: r.tx.s}).GetByID(ctx, id)
}

func (r *txInvoiceRepo) GetForUpdate(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.GetByID(ctx, id)
}

func (r *txInvoiceRepo) Save(_ context.Context, inv *entity.Invoice) error {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	r.tx.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (r *txInvoiceRepo) ListByFiscalStates(ctx context.Context, states []entity.FiscalState, limit int) ([]*entity.Invoice, error) {
	return (&invoiceRepo{s: r.tx.s}).ListByFiscalStates(ctx, states, limit)
}

type txPaymentRepo struct{ tx *txView }

func (r *txPaymentRepo) Register(_ context.Context, p *entity.Payment) error {
	for i := range p.Entries {
		p.Entries[i].PaymentID = p.ID
	}
	r.tx.payments[p.ID] = clonePayment(p)
	return nil
}

func (r *txPaymentRepo) GetByID(ctx context.Context, id string) (*entity.Payment, error) {
	if p, ok := r.tx.payments[id]; ok {
		return clonePayment(p), nil
	}
	return (&paymentRepo{s: r.tx.s}).GetByID(ctx, id)
}

func (r *txPaymentRepo) HasPendingTransfers(_ context.Context, invoiceID string) (bool, error) {
	for _, p := range r.tx.paymentsOf(invoiceID) {
		if !p.Validated && p.HasTransfer() {
			return true, nil
		}
	}
	return false, nil
}

func (r *txPaymentRepo) SumValidatedTransfers(_ context.Context, invoiceID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range r.tx.paymentsOf(invoiceID) {
		if p.Validated {
			sum = sum.Add(p.TransferAmount())
		}
	}
	return sum, nil
}

func (r *txPaymentRepo) Validate(ctx context.Context, id, validatedBy string, at time.Time) error {
	p, err := r.GetByID(ctx, id)
	if err != nil || p == nil {
		return err
	}
	p.Validated = true
	p.ValidatedBy = validatedBy
	p.ValidatedAt = &at
	r.tx.payments[id] = p
	return nil
}

// ── Facturas ──────────────────────────────────────────────────────────────────

type invoiceRepo struct{ s *Store }

func (r *invoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, nil
	}
	return cloneInvoice(inv), nil
}

func (r *invoiceRepo) GetForUpdate(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.GetByID(ctx, id)
}

func (r *invoiceRepo) Save(_ context.Context, inv *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	r.s.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (r *invoiceRepo) ListByFiscalStates(_ context.Context, states []entity.FiscalState, limit int) ([]*entity.Invoice, error) {
	want := make(map[entity.FiscalState]bool, len(states))
	for _, st := range states {
		want[st] = true
	}
	r.s.mu.RLock()
	var out []*entity.Invoice
	for _, inv := range r.s.invoices {
		if inv.IsPaid() && want[inv.FiscalState] {
			out = append(out, cloneInvoice(inv))
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ── Pagos ─────────────────────────────────────────────────────────────────────

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Register(_ context.Context, p *entity.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range p.Entries {
		p.Entries[i].PaymentID = p.ID
	}
	r.s.payments[p.ID] = clonePayment(p)
	return nil
}

func (r *paymentRepo) GetByID(_ context.Context, id string) (*entity.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, nil
	}
	return clonePayment(p), nil
}

func (r *paymentRepo) HasPendingTransfers(_ context.Context, invoiceID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.payments {
		if p.InvoiceID == invoiceID && !p.Validated && p.HasTransfer() {
			return true, nil
		}
	}
	return false, nil
}

func (r *paymentRepo) SumValidatedTransfers(_ context.Context, invoiceID string) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := decimal.Zero
	for _, p := range r.s.payments {
		if p.InvoiceID == invoiceID && p.Validated {
			sum = sum.Add(p.TransferAmount())
		}
	}
	return sum, nil
}

func (r *paymentRepo) Validate(_ context.Context, id, validatedBy string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil
	}
	p.Validated = true
	p.ValidatedBy = validatedBy
	p.ValidatedAt = &at
	return nil
}

// ── Socios y secuenciales ─────────────────────────────────────────────────────

type partnerRepo struct{ s *Store }

func (r *partnerRepo) GetByID(_ context.Context, id string) (*entity.Partner, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.partners[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

type sequenceProvider struct{ s *Store }

func (q *sequenceProvider) Next(_ context.Context, docType string) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	q.s.sequences[docType]++
	return q.s.sequences[docType], nil
}

func cloneInvoice(inv *entity.Invoice) *entity.Invoice {
	c := *inv
	c.Lines = append([]entity.InvoiceLine(nil), inv.Lines...)
	if inv.AuthorizedAt != nil {
		at := *inv.AuthorizedAt
		c.AuthorizedAt = &at
	}
	return &c
}

func clonePayment(p *entity.Payment) *entity.Payment {
	c := *p
	c.Entries = append([]entity.PaymentEntry(nil), p.Entries...)
	if p.ValidatedAt != nil {
		at := *p.ValidatedAt
		c.ValidatedAt = &at
	}
	return &c
}
