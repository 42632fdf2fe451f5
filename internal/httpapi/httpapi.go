// Package httpapi implements the coordinator's control plane: createSwap,
// commitResolver, escrowsReady, notifySettlement, rescueOrder,
// orderStatus, auctionPrice, activeOrders, orderSecret. Transport is
// Gin+JSON, matching the ambient stack every other endpoint in this
// codebase's lineage uses.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goex/swaprelayer/internal/domain"
	"github.com/goex/swaprelayer/internal/lifecycle"
	"github.com/goex/swaprelayer/internal/resolverauth"
)

// Handler wires the lifecycle controller to Gin routes. It is stateless
// beyond that reference: every request either fully succeeds or leaves the
// order's persisted state untouched, per spec.md §7's propagation rule.
type Handler struct {
	Controller *lifecycle.Controller
	Logger     *slog.Logger
}

func New(controller *lifecycle.Controller, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Controller: controller, Logger: logger}
}

// Register mounts every route spec.md §6 enumerates. createSwap needs no
// resolver auth (the maker's EIP-712 signature is the authentication);
// every other mutating or secret-disclosing endpoint requires a resolver
// api key.
func (h *Handler) Register(r *gin.Engine, registry resolverauth.Registry) {
	r.POST("/orders", h.CreateSwap)
	r.GET("/orders/:id", h.OrderStatus)
	r.GET("/orders/:id/price", h.AuctionPrice)
	r.GET("/orders", h.ActiveOrders)

	resolverGroup := r.Group("/", resolverauth.RequireResolverKey(registry))
	resolverGroup.POST("/orders/:id/commit", h.CommitResolver)
	resolverGroup.POST("/orders/:id/escrows-ready", h.EscrowsReady)
	resolverGroup.POST("/orders/:id/settlement", h.NotifySettlement)
	resolverGroup.POST("/orders/:id/rescue", h.RescueOrder)
	resolverGroup.GET("/orders/:id/secret", h.OrderSecret)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, err error) {
	c.JSON(status, errorResponse{Error: err.Error()})
}

// statusForDomainErr maps the Validation/State error taxonomy spec.md §7
// describes onto HTTP status codes.
func statusForDomainErr(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadSignature),
		errors.Is(err, domain.ErrHashMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotOwningResolver):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrWrongStatus),
		errors.Is(err, domain.ErrNotRescuable),
		errors.Is(err, domain.ErrInsufficientAllowance):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPriceOutOfBand),
		errors.Is(err, domain.ErrEscrowUnderfunded),
		errors.Is(err, domain.ErrFundsNotVerified):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) handleControllerErr(c *gin.Context, op string, err error) {
	status := statusForDomainErr(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error(op+" failed", "error", err)
	}
	writeError(c, status, err)
}
