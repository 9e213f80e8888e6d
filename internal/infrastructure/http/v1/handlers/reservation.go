package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"fieldledger/internal/core/apperror"
	appctx "fieldledger/internal/core/context"
	"fieldledger/internal/core/numerator"
	"fieldledger/internal/infrastructure/http/v1/dto"
)

// ReservationHandler grants number blocks to devices.
type ReservationHandler struct {
	*BaseHandler
	reserver numerator.Reserver
}

// NewReservationHandler creates a new reservation handler.
func NewReservationHandler(base *BaseHandler, reserver numerator.Reserver) *ReservationHandler {
	return &ReservationHandler{BaseHandler: base, reserver: reserver}
}

// Reserve grants the next block of numbers for the caller's organization.
// POST /api/v1/numbering/reservations
func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req dto.ReserveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	orgID := strings.TrimSpace(req.OrgID)
	if orgID == "" {
		orgID = appctx.GetOrgID(ctx)
	}
	if !appctx.HasOrgAccess(ctx, orgID) {
		h.HandleError(c, apperror.NewForbidden("organization mismatch").WithDetail("orgId", orgID))
		return
	}

	kind := numerator.Kind(req.Kind)
	rng, err := h.reserver.Reserve(ctx, orgID, kind, req.Count)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.FromRange(orgID, kind, rng))
}
