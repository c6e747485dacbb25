package sri_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	appsri "github.com/jhoicas/cobros-sri/internal/application/sri"
	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	pkgsri "github.com/jhoicas/cobros-sri/pkg/sri"
)

var errDB = errors.New("conexión a base de datos perdida")

func testIssuer() pkgsri.IssuerConfig {
	return pkgsri.IssuerConfig{
		RUC:           "1790012345001",
		LegalName:     "JUNTA ADMINISTRADORA DE AGUA POTABLE",
		MainAddress:   "Calle Principal s/n",
		Establishment: "001",
		EmissionPoint: "001",
		Environment:   pkgsri.EnvironmentTest,
		TaxRateCode:   pkgsri.TaxRateCodeZero,
		TaxRate:       decimal.Zero,
		PaymentForm:   pkgsri.PaymentFormCash,
	}
}

func paidInvoice(id string, fiscal entity.FiscalState) *entity.Invoice {
	return &entity.Invoice{
		ID:             id,
		PartnerID:      "socio-1",
		IssueDate:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Subtotal:       decimal.RequireFromString("120"),
		Total:          decimal.RequireFromString("120"),
		FinancialState: entity.FinancialPaid,
		FiscalState:    fiscal,
	}
}

// ── Repositorios ──────────────────────────────────────────────────────────────

type invoiceStore struct {
	mu      sync.Mutex
	items   map[string]*entity.Invoice
	saves   int
	saveErr error
}

func newInvoiceStore(invoices ...*entity.Invoice) *invoiceStore {
	s := &invoiceStore{items: map[string]*entity.Invoice{}}
	for _, inv := range invoices {
		s.items[inv.ID] = inv
	}
	return s
}

func (s *invoiceStore) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	c := *inv
	return &c, nil
}

func (s *invoiceStore) GetForUpdate(ctx context.Context, id string) (*entity.Invoice, error) {
	return s.GetByID(ctx, id)
}

func (s *invoiceStore) Save(_ context.Context, inv *entity.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	c := *inv
	s.items[inv.ID] = &c
	s.saves++
	return nil
}

func (s *invoiceStore) ListByFiscalStates(_ context.Context, states []entity.FiscalState, limit int) ([]*entity.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range s.items {
		for _, st := range states {
			if inv.FiscalState == st && inv.IsPaid() {
				c := *inv
				out = append(out, &c)
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *invoiceStore) get(id string) *entity.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *s.items[id]
	return &c
}

type partnerStore map[string]*entity.Partner

func (p partnerStore) GetByID(_ context.Context, id string) (*entity.Partner, error) {
	return p[id], nil
}

type sequence struct{ last int64 }

func (s *sequence) Next(context.Context, string) (int64, error) {
	s.last++
	return s.last, nil
}

// ── Colaboradores SRI ─────────────────────────────────────────────────────────

type stubBuilder struct {
	err    error
	builds int
}

func (b *stubBuilder) Build(inv *entity.Invoice, _ *entity.Partner) ([]byte, error) {
	b.builds++
	if b.err != nil {
		return nil, b.err
	}
	return []byte(`<factura id="comprobante"><claveAcceso>` + inv.AccessKey + `</claveAcceso></factura>`), nil
}

type stubSigner struct {
	err  error
	keys []string
}

func (s *stubSigner) Sign(_ context.Context, doc []byte, accessKey string) ([]byte, error) {
	s.keys = append(s.keys, accessKey)
	if s.err != nil {
		return nil, s.err
	}
	return append(doc, []byte("<!-- firmado -->")...), nil
}

type stubAuthority struct {
	submit  pkgsri.SubmissionResult
	poll    pkgsri.AuthorizationResult
	submits int
	polls   int
}

func (a *stubAuthority) Submit(context.Context, []byte) pkgsri.SubmissionResult {
	a.submits++
	return a.submit
}

func (a *stubAuthority) Poll(context.Context, string) pkgsri.AuthorizationResult {
	a.polls++
	return a.poll
}

type recordingNotifier struct{ notices []appsri.AuthorizedNotice }

func (n *recordingNotifier) NotifyAuthorized(_ context.Context, notice appsri.AuthorizedNotice) error {
	n.notices = append(n.notices, notice)
	return nil
}

type failingArchiver struct{ calls int }

func (a *failingArchiver) Archive(context.Context, *entity.Invoice) (string, error) {
	a.calls++
	return "", errors.New("bucket no disponible")
}

// ── Cola ──────────────────────────────────────────────────────────────────────

type recordingQueue struct {
	mu   sync.Mutex
	jobs []appsri.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job appsri.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) all() []appsri.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]appsri.Job(nil), q.jobs...)
}
