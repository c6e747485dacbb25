package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/cobros-sri/internal/application/dto"
)

// reconciler lo implementa *sri.Orchestrator.
type reconciler interface {
	Reconcile(ctx context.Context) (*dto.ReconcileManifest, error)
}

// SRIHandler operaciones administrativas del circuito SRI.
type SRIHandler struct {
	reconciler reconciler
}

// NewSRIHandler construye el handler.
func NewSRIHandler(r reconciler) *SRIHandler {
	return &SRIHandler{reconciler: r}
}

// Reconcile reencola las facturas pagadas que quedaron sin autorizar.
// POST /api/sri/reconcile → 202 con el manifiesto de trabajos.
func (h *SRIHandler) Reconcile(c *fiber.Ctx) error {
	manifest, err := h.reconciler.Reconcile(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(manifest)
}
