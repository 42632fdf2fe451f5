package httpapi

import (
	"encoding/hex"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goex/swaprelayer/internal/domain"
)

type intentDTO struct {
	Maker              string `json:"maker" binding:"required"`
	SrcChain           uint64 `json:"src_chain" binding:"required"`
	SrcToken           string `json:"src_token" binding:"required"`
	SrcAmount          string `json:"src_amount" binding:"required"`
	DstChain           uint64 `json:"dst_chain" binding:"required"`
	DstToken           string `json:"dst_token" binding:"required"`
	SecretHash         string `json:"secret_hash" binding:"required"`
	MinAcceptablePrice string `json:"min_acceptable_price" binding:"required"`
	OrderDurationSecs  int64  `json:"order_duration_seconds"`
	Nonce              uint64 `json:"nonce"`
	DeadlineUnix       int64  `json:"deadline"`
}

type createSwapRequest struct {
	Intent    intentDTO `json:"intent" binding:"required"`
	Signature string    `json:"signature" binding:"required"`
	Preimage  string    `json:"preimage" binding:"required"`
}

type createSwapResponse struct {
	OrderID     string `json:"order_id"`
	MarketPrice string `json:"market_price"`
	ExpiresAt   string `json:"expires_at"`
}

func (h *Handler) CreateSwap(c *gin.Context) {
	var req createSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	intent, err := parseIntent(req.Intent)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	signature, err := hex.DecodeString(trimHexPrefix(req.Signature))
	if err != nil {
		writeError(c, http.StatusBadRequest, errors.New("signature must be hex-encoded"))
		return
	}

	preimageBytes, err := hex.DecodeString(trimHexPrefix(req.Preimage))
	if err != nil || len(preimageBytes) != 32 {
		writeError(c, http.StatusBadRequest, errors.New("preimage must be 32 hex-encoded bytes"))
		return
	}
	var preimage [32]byte
	copy(preimage[:], preimageBytes)

	result, err := h.Controller.Admit(c.Request.Context(), intent, signature, preimage)
	if err != nil {
		h.handleControllerErr(c, "admit", err)
		return
	}

	c.JSON(http.StatusOK, createSwapResponse{
		OrderID:     hex.EncodeToString(result.OrderID[:]),
		MarketPrice: result.MarketPrice.String(),
		ExpiresAt:   result.ExpiresAt.Format(time.RFC3339),
	})
}

func parseIntent(dto intentDTO) (domain.Intent, error) {
	srcAmount, ok := new(big.Int).SetString(dto.SrcAmount, 10)
	if !ok {
		return domain.Intent{}, errors.New("src_amount must be a base-10 integer")
	}
	minPrice, ok := new(big.Int).SetString(dto.MinAcceptablePrice, 10)
	if !ok {
		return domain.Intent{}, errors.New("min_acceptable_price must be a base-10 integer")
	}
	secretHashBytes, err := hex.DecodeString(trimHexPrefix(dto.SecretHash))
	if err != nil || len(secretHashBytes) != 32 {
		return domain.Intent{}, errors.New("secret_hash must be 32 hex-encoded bytes")
	}
	var secretHash [32]byte
	copy(secretHash[:], secretHashBytes)

	deadline := time.Now().Add(24 * time.Hour)
	if dto.DeadlineUnix > 0 {
		deadline = time.Unix(dto.DeadlineUnix, 0)
	}

	return domain.Intent{
		Maker:              dto.Maker,
		SrcChain:           dto.SrcChain,
		SrcToken:           dto.SrcToken,
		SrcAmount:          srcAmount,
		DstChain:           dto.DstChain,
		DstToken:           dto.DstToken,
		SecretHash:         secretHash,
		MinAcceptablePrice: minPrice,
		OrderDuration:      time.Duration(dto.OrderDurationSecs) * time.Second,
		Nonce:              dto.Nonce,
		Deadline:           deadline,
	}, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func parseOrderID(hexStr string) ([32]byte, error) {
	b, err := hex.DecodeString(trimHexPrefix(hexStr))
	if err != nil || len(b) != 32 {
		return [32]byte{}, errors.New("order id must be 32 hex-encoded bytes")
	}
	var id [32]byte
	copy(id[:], b)
	return id, nil
}
