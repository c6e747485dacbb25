package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/cobros-sri/internal/domain/entity"
	"github.com/jhoicas/cobros-sri/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `
	id, partner_id, issue_date, sequential, subtotal, tax, total,
	financial_state, fiscal_state, access_key, fiscal_error_code,
	authority_error_message, authorized_document, authorization_number, authorized_at,
	created_at, updated_at`

// GetByID obtiene la factura con sus rubros. (nil, nil) si no existe.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.get(ctx, `SELECT`+invoiceColumns+` FROM invoices WHERE id = $1`, id)
}

// GetForUpdate igual que GetByID pero bloquea la fila hasta el fin de la tx.
func (r *InvoiceRepo) GetForUpdate(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.get(ctx, `SELECT`+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
}

func (r *InvoiceRepo) get(ctx context.Context, query, id string) (*entity.Invoice, error) {
	inv, err := scanInvoice(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	lines, err := r.lines(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return inv, nil
}

func (r *InvoiceRepo) lines(ctx context.Context, invoiceID string) ([]entity.InvoiceLine, error) {
	const query = `
		SELECT id, invoice_id, concept, quantity, unit_price, subtotal
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY line_no`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice lines: %w", err)
	}
	defer rows.Close()
	var out []entity.InvoiceLine
	for rows.Next() {
		var l entity.InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Concept, &l.Quantity, &l.UnitPrice, &l.Subtotal); err != nil {
			return nil, fmt.Errorf("scan invoice line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Save actualiza estados, clave y autorización; si la factura no existe la inserta con sus rubros.
func (r *InvoiceRepo) Save(ctx context.Context, inv *entity.Invoice) error {
	const update = `
		UPDATE invoices
		SET sequential              = $2,
		    financial_state         = $3,
		    fiscal_state            = $4,
		    access_key              = $5,
		    fiscal_error_code       = $6,
		    authority_error_message = $7,
		    authorized_document     = $8,
		    authorization_number    = $9,
		    authorized_at           = $10,
		    updated_at              = $11
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, update,
		inv.ID, inv.Sequential, inv.FinancialState, inv.FiscalState,
		nullIfEmpty(inv.AccessKey), nullIfEmpty(inv.FiscalErrorCode), nullIfEmpty(inv.AuthorityMessage),
		nullIfEmpty(inv.AuthorizedDocument), nullIfEmpty(inv.AuthorizationNumber), inv.AuthorizedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", asConflict(err, "clave de acceso ya asignada a otra factura"))
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	return r.insert(ctx, inv)
}

func (r *InvoiceRepo) insert(ctx context.Context, inv *entity.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	const header = `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.q.Exec(ctx, header,
		inv.ID, inv.PartnerID, inv.IssueDate, inv.Sequential, inv.Subtotal, inv.Tax, inv.Total,
		inv.FinancialState, inv.FiscalState, nullIfEmpty(inv.AccessKey), nullIfEmpty(inv.FiscalErrorCode),
		nullIfEmpty(inv.AuthorityMessage), nullIfEmpty(inv.AuthorizedDocument), nullIfEmpty(inv.AuthorizationNumber),
		inv.AuthorizedAt, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	const line = `
		INSERT INTO invoice_lines (id, invoice_id, line_no, concept, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i := range inv.Lines {
		l := &inv.Lines[i]
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		l.InvoiceID = inv.ID
		if _, err := r.q.Exec(ctx, line, l.ID, inv.ID, i+1, l.Concept, l.Quantity, l.UnitPrice, l.Subtotal); err != nil {
			return fmt.Errorf("insert invoice line: %w", err)
		}
	}
	return nil
}

// ListByFiscalStates facturas pagadas en los estados dados, las menos recientes primero.
func (r *InvoiceRepo) ListByFiscalStates(ctx context.Context, states []entity.FiscalState, limit int) ([]*entity.Invoice, error) {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT` + invoiceColumns + `
		FROM invoices
		WHERE financial_state = 'PAID' AND fiscal_state = ANY($1)
		ORDER BY updated_at
		LIMIT $2`
	rows, err := r.q.Query(ctx, query, names, limit)
	if err != nil {
		return nil, fmt.Errorf("list invoices by fiscal state: %w", err)
	}
	defer rows.Close()
	var out []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var (
		inv                                         entity.Invoice
		financial, fiscal                           string
		accessKey, code, message, document, authNum *string
	)
	err := row.Scan(
		&inv.ID, &inv.PartnerID, &inv.IssueDate, &inv.Sequential, &inv.Subtotal, &inv.Tax, &inv.Total,
		&financial, &fiscal, &accessKey, &code,
		&message, &document, &authNum, &inv.AuthorizedAt,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	// Los valores históricos se normalizan aquí; el resto del código sólo ve el vocabulario canónico.
	if st, ok := entity.ParseFinancialState(financial); ok {
		inv.FinancialState = st
	} else {
		inv.FinancialState = entity.FinancialState(financial)
	}
	st, impliedCode, ok := entity.ParseFiscalState(fiscal)
	if !ok {
		st = entity.FiscalState(fiscal)
	}
	inv.FiscalState = st
	inv.AccessKey = derefStr(accessKey)
	inv.FiscalErrorCode = derefStr(code)
	if inv.FiscalErrorCode == "" {
		inv.FiscalErrorCode = impliedCode
	}
	inv.AuthorityMessage = derefStr(message)
	inv.AuthorizedDocument = derefStr(document)
	inv.AuthorizationNumber = derefStr(authNum)
	return &inv, nil
}
