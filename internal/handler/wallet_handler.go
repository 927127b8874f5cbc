package handler

import (
	"github.com/gin-gonic/gin"

	"payout-core/internal/handler/request"
	"payout-core/internal/handler/response"
	"payout-core/internal/model"
	"payout-core/internal/service/wallet"
	"payout-core/internal/store"
)

const idempotencyHeader = "Idempotency-Key"

type WalletHandler struct {
	wallets *wallet.Service
}

func NewWalletHandler(wallets *wallet.Service) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

// CreateWallet 获取或创建创作者钱包
// @Summary Get or create a creator wallet
// @Tags Wallet
// @Accept json
// @Produce json
// @Param request body request.CreateWalletRequest true "Creator"
// @Success 200 {object} response.Response{data=model.CreatorWallet}
// @Router /api/v1/wallets [post]
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	var req request.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	w, err := h.wallets.GetOrCreateWallet(c.Request.Context(), req.CreatorID)
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, w)
}

// GetSummary 钱包概览 (含流水对账结果)
// @Summary Wallet summary
// @Tags Wallet
// @Produce json
// @Param id path string true "Wallet ID"
// @Success 200 {object} response.Response{data=wallet.WalletSummary}
// @Router /api/v1/wallets/{id}/summary [get]
func (h *WalletHandler) GetSummary(c *gin.Context) {
	sum, err := h.wallets.GetWalletSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, sum)
}

// GetEarnings 按天收入明细
// @Summary Daily earnings breakdown
// @Tags Wallet
// @Produce json
// @Param id path string true "Wallet ID"
// @Param start query string false "Start date (YYYY-MM-DD)"
// @Param end query string false "End date, inclusive (YYYY-MM-DD)"
// @Success 200 {object} response.Response{data=wallet.EarningsBreakdown}
// @Router /api/v1/wallets/{id}/earnings [get]
func (h *WalletHandler) GetEarnings(c *gin.Context) {
	var q request.DateRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BindError(c, err)
		return
	}
	from, to, err := dateRange(q)
	if err != nil {
		response.BindError(c, err)
		return
	}
	out, err := h.wallets.GetEarningsBreakdown(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, out)
}

// GetStats 区间流水统计
// @Summary Wallet statistics
// @Tags Wallet
// @Produce json
// @Param id path string true "Wallet ID"
// @Param start query string false "Start date (YYYY-MM-DD)"
// @Param end query string false "End date, inclusive (YYYY-MM-DD)"
// @Success 200 {object} response.Response{data=wallet.WalletStats}
// @Router /api/v1/wallets/{id}/stats [get]
func (h *WalletHandler) GetStats(c *gin.Context) {
	var q request.DateRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BindError(c, err)
		return
	}
	from, to, err := dateRange(q)
	if err != nil {
		response.BindError(c, err)
		return
	}
	stats, err := h.wallets.GetWalletStats(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, stats)
}

// UpdatePayoutMethod 设置收款方式
// @Summary Update payout method
// @Tags Wallet
// @Accept json
// @Produce json
// @Param id path string true "Wallet ID"
// @Param request body request.PayoutMethodRequest true "Payout method"
// @Success 200 {object} response.Response{data=model.CreatorWallet}
// @Router /api/v1/wallets/{id}/payout-method [put]
func (h *WalletHandler) UpdatePayoutMethod(c *gin.Context) {
	var req request.PayoutMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	w, err := h.wallets.UpdatePayoutMethod(c.Request.Context(), c.Param("id"), req.ToModel())
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, w)
}

// RequestPayout 创作者主动申请打款，金额立即冻结
// @Summary Request a payout
// @Tags Wallet
// @Accept json
// @Produce json
// @Param id path string true "Wallet ID"
// @Param Idempotency-Key header string false "Client idempotency key"
// @Param request body request.RequestPayoutRequest true "Payout"
// @Success 200 {object} response.Response{data=wallet.PayoutRequestResult}
// @Router /api/v1/wallets/{id}/payouts [post]
func (h *WalletHandler) RequestPayout(c *gin.Context) {
	var req request.RequestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	res := h.wallets.RequestPayout(c.Request.Context(), wallet.PayoutRequestInput{
		WalletID:       c.Param("id"),
		Amount:         req.Amount,
		Method:         req.Method.ToModel(),
		IdempotencyKey: c.GetHeader(idempotencyHeader),
	})
	if !res.Success {
		response.Error(c, toErrno(res.Err))
		return
	}
	response.Success(c, res)
}

// ListPayouts 钱包的打款单
// @Summary List payout requests of a wallet
// @Tags Wallet
// @Produce json
// @Param id path string true "Wallet ID"
// @Param status query string false "pending|processing|completed|failed"
// @Success 200 {object} response.Response{data=[]model.PayoutRequest}
// @Router /api/v1/wallets/{id}/payouts [get]
func (h *WalletHandler) ListPayouts(c *gin.Context) {
	reqs, err := h.wallets.ListPayoutRequests(c.Request.Context(), store.PayoutRequestFilter{
		WalletID: c.Param("id"),
		Status:   model.PayoutRequestStatus(c.Query("status")),
	})
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, reqs)
}
