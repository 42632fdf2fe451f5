package httpapi

import (
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goex/swaprelayer/internal/resolverauth"
)

func authenticatedResolver(c *gin.Context) (string, bool) {
	resolver, ok := resolverauth.ResolverFromContext(c)
	if !ok || resolver == "" {
		writeError(c, http.StatusUnauthorized, errors.New("resolver identity missing"))
		return "", false
	}
	return resolver, true
}

type commitResolverRequest struct {
	AcceptedPrice string `json:"accepted_price" binding:"required"`
}

type commitResolverResponse struct {
	Success           bool   `json:"success"`
	CurrentPrice      string `json:"current_price"`
	ExpectedDstAmount string `json:"expected_dst_amount"`
}

func (h *Handler) CommitResolver(c *gin.Context) {
	orderID, err := parseOrderID(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	resolver, ok := authenticatedResolver(c)
	if !ok {
		return
	}

	var req commitResolverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	quoted, ok2 := new(big.Int).SetString(req.AcceptedPrice, 10)
	if !ok2 {
		writeError(c, http.StatusBadRequest, errors.New("accepted_price must be a base-10 integer"))
		return
	}

	result, err := h.Controller.Commit(c.Request.Context(), orderID, resolver, quoted, time.Now())
	if err != nil {
		h.handleControllerErr(c, "commit", err)
		return
	}

	c.JSON(http.StatusOK, commitResolverResponse{
		Success:           true,
		CurrentPrice:      result.CurrentPrice.String(),
		ExpectedDstAmount: result.ExpectedDstAmount.String(),
	})
}

type escrowsReadyRequest struct {
	SrcEscrow    string `json:"src_escrow" binding:"required"`
	DstEscrow    string `json:"dst_escrow" binding:"required"`
	SrcDepositTx string `json:"src_deposit_tx" binding:"required"`
	DstDepositTx string `json:"dst_deposit_tx" binding:"required"`
}

func (h *Handler) EscrowsReady(c *gin.Context) {
	orderID, err := parseOrderID(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	resolver, ok := authenticatedResolver(c)
	if !ok {
		return
	}

	var req escrowsReadyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	if err := h.Controller.EscrowsReady(c.Request.Context(), orderID, resolver, req.SrcEscrow, req.DstEscrow, req.SrcDepositTx, req.DstDepositTx); err != nil {
		h.handleControllerErr(c, "escrows_ready", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type notifySettlementRequest struct {
	DstTokenAmount string `json:"dst_token_amount" binding:"required"`
	DstTxHash      string `json:"dst_tx_hash" binding:"required"`
}

func (h *Handler) NotifySettlement(c *gin.Context) {
	orderID, err := parseOrderID(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	resolver, ok := authenticatedResolver(c)
	if !ok {
		return
	}

	var req notifySettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	dstAmount, ok2 := new(big.Int).SetString(req.DstTokenAmount, 10)
	if !ok2 {
		writeError(c, http.StatusBadRequest, errors.New("dst_token_amount must be a base-10 integer"))
		return
	}

	if err := h.Controller.NotifySettlement(c.Request.Context(), orderID, resolver, dstAmount, req.DstTxHash); err != nil {
		h.handleControllerErr(c, "notify_settlement", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type rescueOrderResponse struct {
	Success          bool   `json:"success"`
	OriginalResolver string `json:"original_resolver"`
}

func (h *Handler) RescueOrder(c *gin.Context) {
	orderID, err := parseOrderID(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	resolver, ok := authenticatedResolver(c)
	if !ok {
		return
	}

	original, err := h.Controller.RescueOrder(c.Request.Context(), orderID, resolver)
	if err != nil {
		h.handleControllerErr(c, "rescue_order", err)
		return
	}
	c.JSON(http.StatusOK, rescueOrderResponse{Success: true, OriginalResolver: original})
}

type orderSecretResponse struct {
	RevealTxHash string `json:"reveal_tx_hash"`
	RevealedAt   string `json:"revealed_at"`
}

func (h *Handler) OrderSecret(c *gin.Context) {
	orderID, err := parseOrderID(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	resolver, ok := authenticatedResolver(c)
	if !ok {
		return
	}

	result, err := h.Controller.OrderSecret(c.Request.Context(), orderID, resolver)
	if err != nil {
		h.handleControllerErr(c, "order_secret", err)
		return
	}
	c.JSON(http.StatusOK, orderSecretResponse{
		RevealTxHash: result.RevealTxHash,
		RevealedAt:   result.RevealedAt.Format(time.RFC3339),
	})
}
