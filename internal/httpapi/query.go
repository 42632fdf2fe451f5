package httpapi

import (
	"encoding/hex"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/goex/swaprelayer/internal/domain"
	"github.com/goex/swaprelayer/internal/pricing"
)

// displayPrice renders a fixed-point pricing.Scale integer as a
// human-readable decimal string for API responses, keeping the internal
// math on *big.Int throughout and only converting at the response
// boundary.
func displayPrice(v *big.Int) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromBigInt(v, -pricing.ScaleDecimals).String()
}

type orderView struct {
	OrderID                  string  `json:"order_id"`
	Maker                    string  `json:"maker"`
	SrcChain                 uint64  `json:"src_chain"`
	SrcToken                 string  `json:"src_token"`
	SrcAmount                string  `json:"src_amount"`
	DstChain                 uint64  `json:"dst_chain"`
	DstToken                 string  `json:"dst_token"`
	Status                   string  `json:"status"`
	AuctionStartPrice        string  `json:"auction_start_price"`
	AuctionStartPriceDisplay string  `json:"auction_start_price_display"`
	AuctionEndPrice          string  `json:"auction_end_price"`
	AuctionEndPriceDisplay   string  `json:"auction_end_price_display"`
	CurrentPrice             string  `json:"current_price"`
	CurrentPriceDisplay      string  `json:"current_price_display"`
	Resolver                 *string `json:"resolver,omitempty"`
	SrcEscrow                *string `json:"src_escrow,omitempty"`
	DstEscrow                *string `json:"dst_escrow,omitempty"`
	CreatedAt                string  `json:"created_at"`
	ExpiresAt                string  `json:"expires_at"`
}

func redactOrder(order domain.Order, currentPrice *big.Int) orderView {
	view := orderView{
		OrderID:                  hex.EncodeToString(order.ID[:]),
		Maker:                    order.Intent.Maker,
		SrcChain:                 order.Intent.SrcChain,
		SrcToken:                 order.Intent.SrcToken,
		SrcAmount:                order.Intent.SrcAmount.String(),
		DstChain:                 order.Intent.DstChain,
		DstToken:                 order.Intent.DstToken,
		Status:                   string(order.Status),
		AuctionStartPrice:        order.Auction.StartPrice.String(),
		AuctionStartPriceDisplay: displayPrice(order.Auction.StartPrice),
		AuctionEndPrice:          order.Auction.EndPrice.String(),
		AuctionEndPriceDisplay:   displayPrice(order.Auction.EndPrice),
		CreatedAt:                order.CreatedAt.Format(time.RFC3339),
		ExpiresAt:                order.ExpiresAt.Format(time.RFC3339),
	}
	if currentPrice != nil {
		view.CurrentPrice = currentPrice.String()
		view.CurrentPriceDisplay = displayPrice(currentPrice)
	}
	if order.Resolver != "" {
		view.Resolver = &order.Resolver
	}
	if order.SrcEscrow != "" {
		view.SrcEscrow = &order.SrcEscrow
	}
	if order.DstEscrow != "" {
		view.DstEscrow = &order.DstEscrow
	}
	return view
}

func (h *Handler) OrderStatus(c *gin.Context) {
	orderID, err := parseOrderID(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	order, err := h.Controller.OrderStatus(c.Request.Context(), orderID)
	if err != nil {
		h.handleControllerErr(c, "order_status", err)
		return
	}

	var currentPrice *big.Int
	if price, err := h.Controller.AuctionPrice(c.Request.Context(), orderID); err == nil {
		currentPrice = price.CurrentPrice
	}
	c.JSON(http.StatusOK, redactOrder(order, currentPrice))
}

type auctionPriceResponse struct {
	CurrentPrice        string `json:"current_price"`
	CurrentPriceDisplay string `json:"current_price_display"`
	MakerAmount         string `json:"maker_amount"`
	TakerAmount         string `json:"taker_amount"`
	TimeRemainingSecs   int64  `json:"time_remaining_seconds"`
}

func (h *Handler) AuctionPrice(c *gin.Context) {
	orderID, err := parseOrderID(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	result, err := h.Controller.AuctionPrice(c.Request.Context(), orderID)
	if err != nil {
		h.handleControllerErr(c, "auction_price", err)
		return
	}

	c.JSON(http.StatusOK, auctionPriceResponse{
		CurrentPrice:        result.CurrentPrice.String(),
		CurrentPriceDisplay: displayPrice(result.CurrentPrice),
		MakerAmount:         result.MakerAmount.String(),
		TakerAmount:         result.TakerAmount.String(),
		TimeRemainingSecs:   int64(result.TimeRemaining.Seconds()),
	})
}

func (h *Handler) ActiveOrders(c *gin.Context) {
	orders, err := h.Controller.ActiveOrders(c.Request.Context())
	if err != nil {
		h.handleControllerErr(c, "active_orders", err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		var currentPrice *big.Int
		if price, err := h.Controller.AuctionPrice(c.Request.Context(), order.ID); err == nil {
			currentPrice = price.CurrentPrice
		}
		views = append(views, redactOrder(order, currentPrice))
	}
	c.JSON(http.StatusOK, gin.H{"orders": views})
}
