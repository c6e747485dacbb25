package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/cobros-sri/internal/application/dto"
	"github.com/jhoicas/cobros-sri/internal/domain"
	"github.com/jhoicas/cobros-sri/internal/domain/repository"
)

// FiscalUseCase consultas sobre el estado SRI de una factura y su RIDE.
type FiscalUseCase struct {
	invoices  repository.InvoiceRepository
	partners  repository.PartnerRepository
	generator InvoicePDFGenerator
}

// NewFiscalUseCase construye el caso de uso. generator puede ser nil (RIDE deshabilitado).
func NewFiscalUseCase(invoices repository.InvoiceRepository, partners repository.PartnerRepository, generator InvoicePDFGenerator) *FiscalUseCase {
	return &FiscalUseCase{invoices: invoices, partners: partners, generator: generator}
}

// FiscalStatus estado financiero y fiscal. partnerID no vacío restringe al dueño.
func (uc *FiscalUseCase) FiscalStatus(ctx context.Context, partnerID, invoiceID string) (*dto.FiscalStatusResponse, error) {
	inv, err := uc.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("estado fiscal: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if partnerID != "" && inv.PartnerID != partnerID {
		return nil, domain.ErrForbidden
	}
	out := &dto.FiscalStatusResponse{
		InvoiceID:           inv.ID,
		FinancialState:      string(inv.FinancialState),
		FiscalState:         string(inv.FiscalState),
		AccessKey:           inv.AccessKey,
		FiscalErrorCode:     inv.FiscalErrorCode,
		AuthorizationNumber: inv.AuthorizationNumber,
		AuthorizedAt:        inv.AuthorizedAt,
	}
	if inv.AuthorityMessage != "" {
		msg := inv.AuthorityMessage
		out.FiscalErrorMessage = &msg
	}
	return out, nil
}

// DownloadRIDE genera el PDF. Sólo para facturas autorizadas.
//
// Retorna:
//   - (pdf, filename, nil)     si todo sale bien.
//   - domain.ErrNotFound       si la factura o el socio no existen.
//   - domain.ErrForbidden      si la factura no es del socio del token.
//   - domain.ErrNotAuthorized  si la factura aún no está AUTHORIZED.
func (uc *FiscalUseCase) DownloadRIDE(ctx context.Context, partnerID, invoiceID string) ([]byte, string, error) {
	if uc.generator == nil {
		return nil, "", fmt.Errorf("%w: RIDE deshabilitado", domain.ErrNotFound)
	}
	inv, err := uc.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, "", fmt.Errorf("ride: obtener factura: %w", err)
	}
	if inv == nil {
		return nil, "", domain.ErrNotFound
	}
	if partnerID != "" && inv.PartnerID != partnerID {
		return nil, "", domain.ErrForbidden
	}
	if !inv.IsAuthorized() {
		return nil, "", domain.ErrNotAuthorized
	}
	partner, err := uc.partners.GetByID(ctx, inv.PartnerID)
	if err != nil {
		return nil, "", fmt.Errorf("ride: obtener socio: %w", err)
	}
	if partner == nil {
		return nil, "", domain.ErrNotFound
	}
	pdf, err := uc.generator.Render(inv, partner)
	if err != nil {
		return nil, "", fmt.Errorf("ride: generar PDF: %w", err)
	}
	return pdf, fmt.Sprintf("RIDE_%s.pdf", inv.AccessKey), nil
}
