package handler

import (
	"github.com/gin-gonic/gin"

	"payout-core/internal/handler/request"
	"payout-core/internal/handler/response"
	"payout-core/internal/model"
	"payout-core/internal/service/connect"
	"payout-core/internal/service/platform"
)

type PlatformHandler struct {
	platform *platform.Service
	connect  *connect.Service
}

func NewPlatformHandler(p *platform.Service, c *connect.Service) *PlatformHandler {
	return &PlatformHandler{platform: p, connect: c}
}

// Dashboard 平台资金看板
// @Summary Platform dashboard stats
// @Tags Platform
// @Produce json
// @Success 200 {object} response.Response{data=platform.DashboardStats}
// @Router /api/v1/admin/platform/dashboard [get]
func (h *PlatformHandler) Dashboard(c *gin.Context) {
	stats, err := h.platform.GetPlatformDashboardStats(c.Request.Context())
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, stats)
}

// ListAccounts
// @Summary List platform accounts
// @Tags Platform
// @Produce json
// @Success 200 {object} response.Response{data=[]model.PlatformAccount}
// @Router /api/v1/admin/platform/accounts [get]
func (h *PlatformHandler) ListAccounts(c *gin.Context) {
	accts, err := h.platform.ListAccounts(c.Request.Context())
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, accts)
}

// UpsertAccount 新建平台账户；is_primary=true 时替换原主账户
// @Summary Create a platform account
// @Tags Platform
// @Accept json
// @Produce json
// @Param request body request.PlatformAccountRequest true "Account"
// @Success 200 {object} response.Response{data=model.PlatformAccount}
// @Router /api/v1/admin/platform/accounts [put]
func (h *PlatformHandler) UpsertAccount(c *gin.Context) {
	var req request.PlatformAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	acct, err := h.platform.UpsertPlatformAccount(c.Request.Context(), platform.AccountInput{
		Name:                req.Name,
		ProcessorAccountID:  req.ProcessorAccountID,
		IsPrimary:           req.IsPrimary,
		AutoPayoutEnabled:   req.AutoPayoutEnabled,
		PayoutSchedule:      model.PayoutSchedule(req.PayoutSchedule),
		PayoutDay:           req.PayoutDay,
		MinimumPayoutAmount: req.MinimumPayoutAmount,
		Currency:            req.Currency,
	})
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, acct)
}

// UpdateAccount 部分更新
// @Summary Update a platform account
// @Tags Platform
// @Accept json
// @Produce json
// @Param id path string true "Account ID"
// @Param request body request.UpdatePlatformAccountRequest true "Patch"
// @Success 200 {object} response.Response{data=model.PlatformAccount}
// @Router /api/v1/admin/platform/accounts/{id} [put]
func (h *PlatformHandler) UpdateAccount(c *gin.Context) {
	var req request.UpdatePlatformAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	patch := platform.AccountPatch{
		Name:                req.Name,
		ProcessorAccountID:  req.ProcessorAccountID,
		IsPrimary:           req.IsPrimary,
		IsActive:            req.IsActive,
		AutoPayoutEnabled:   req.AutoPayoutEnabled,
		PayoutDay:           req.PayoutDay,
		MinimumPayoutAmount: req.MinimumPayoutAmount,
	}
	if req.PayoutSchedule != nil {
		s := model.PayoutSchedule(*req.PayoutSchedule)
		patch.PayoutSchedule = &s
	}
	acct, err := h.platform.UpdatePlatformAccount(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, acct)
}

// SetupStripeConnect 创建 connected account 并返回开户链接
// @Summary Start Stripe Connect onboarding
// @Tags Platform
// @Accept json
// @Produce json
// @Param request body request.StripeConnectRequest true "Email"
// @Success 200 {object} response.Response{data=platform.StripeConnectSetup}
// @Router /api/v1/admin/platform/stripe-connect [post]
func (h *PlatformHandler) SetupStripeConnect(c *gin.Context) {
	var req request.StripeConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	out, err := h.platform.SetupStripeConnect(c.Request.Context(), req.Email)
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, out)
}

// GetStripeConnect
// @Summary Stripe Connect status of the primary account
// @Tags Platform
// @Produce json
// @Success 200 {object} response.Response{data=platform.StripeConnectInfo}
// @Router /api/v1/admin/platform/stripe-connect [get]
func (h *PlatformHandler) GetStripeConnect(c *gin.Context) {
	info, err := h.platform.GetStripeConnectInfo(c.Request.Context())
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, info)
}

// GetFee
// @Summary Active platform fee
// @Tags Platform
// @Produce json
// @Success 200 {object} response.Response{data=platform.FeeConfigView}
// @Router /api/v1/admin/platform/fee [get]
func (h *PlatformHandler) GetFee(c *gin.Context) {
	fee, err := h.platform.GetFeeConfig(c.Request.Context())
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, fee)
}

// SetFee 新费率只影响之后的付款
// @Summary Set the platform fee percentage
// @Tags Platform
// @Accept json
// @Produce json
// @Param request body request.FeeRequest true "Percentage (0-100)"
// @Success 200 {object} response.Response{data=model.PlatformFeeConfig}
// @Router /api/v1/admin/platform/fee [put]
func (h *PlatformHandler) SetFee(c *gin.Context) {
	var req request.FeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	cfg, err := h.platform.SetFeePercentage(c.Request.Context(), req.Percentage)
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, cfg)
}

// ProcessorBalance 处理方上的平台余额 (只读)
// @Summary Platform balance at the payment processor
// @Tags Platform
// @Produce json
// @Success 200 {object} response.Response{data=connect.PlatformBalanceResult}
// @Router /api/v1/admin/platform/processor-balance [get]
func (h *PlatformHandler) ProcessorBalance(c *gin.Context) {
	bal, err := h.connect.GetPlatformBalance(c.Request.Context())
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, bal)
}

// BatchPayouts 直接向多个 connected account 转账，不经过钱包
// @Summary Batch transfers to connected accounts
// @Tags Platform
// @Accept json
// @Produce json
// @Param request body []connect.BatchPayout true "Transfers (idempotency_key required)"
// @Success 200 {object} response.Response{data=connect.BatchPayoutResult}
// @Router /api/v1/admin/platform/batch-payouts [post]
func (h *PlatformHandler) BatchPayouts(c *gin.Context) {
	var items []connect.BatchPayout
	if err := c.ShouldBindJSON(&items); err != nil {
		response.BindError(c, err)
		return
	}
	response.Success(c, h.connect.ProcessBatchPayouts(c.Request.Context(), items))
}
