package handler

import (
	"github.com/gin-gonic/gin"

	"payout-core/internal/handler/request"
	"payout-core/internal/handler/response"
	"payout-core/internal/service/connect"
	"payout-core/internal/service/wallet"
	"payout-core/pkg/errno"
)

type PaymentHandler struct {
	wallets *wallet.Service
	connect *connect.Service
}

func NewPaymentHandler(wallets *wallet.Service, connect *connect.Service) *PaymentHandler {
	return &PaymentHandler{wallets: wallets, connect: connect}
}

// ProcessSubscriptionPayment 订阅付款入账 (按 external_payment_id 幂等)
// @Summary Credit a subscription payment
// @Tags Payment
// @Accept json
// @Produce json
// @Param request body request.SubscriptionPaymentRequest true "Payment"
// @Success 200 {object} response.Response{data=wallet.PaymentProcessingResult}
// @Router /api/v1/payments/subscription [post]
func (h *PaymentHandler) ProcessSubscriptionPayment(c *gin.Context) {
	var req request.SubscriptionPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	res := h.wallets.ProcessSubscriptionPayment(c.Request.Context(), wallet.SubscriptionPayment{
		SubscriptionID:    req.SubscriptionID,
		CreatorID:         req.CreatorID,
		GrossAmount:       req.GrossAmount,
		Currency:          req.Currency,
		PaymentMethod:     req.PaymentMethod,
		ExternalPaymentID: req.ExternalPaymentID,
	})
	if !res.Success {
		response.Error(c, toErrno(res.Err))
		return
	}
	response.Success(c, res)
}

// CreatePaymentIntent 全额收款到平台账户，metadata 携带拆分结果
// @Summary Create a platform payment intent
// @Tags Payment
// @Accept json
// @Produce json
// @Param request body request.PaymentIntentRequest true "Payment intent"
// @Success 200 {object} response.Response{data=connect.PlatformPaymentResult}
// @Router /api/v1/payments/intents [post]
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	var req request.PaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	res := h.connect.CreatePlatformPaymentIntent(c.Request.Context(), connect.PaymentIntentInput{
		SubscriptionID: req.SubscriptionID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		CustomerID:     req.CustomerID,
		Metadata:       req.Metadata,
	})
	if !res.Success {
		response.Error(c, errno.ErrProcessor.WithMessage(res.Error))
		return
	}
	response.Success(c, res)
}
