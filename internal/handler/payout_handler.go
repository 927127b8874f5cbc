package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"payout-core/internal/handler/request"
	"payout-core/internal/handler/response"
	"payout-core/internal/model"
	"payout-core/internal/service/payout"
	"payout-core/internal/service/wallet"
	"payout-core/internal/store"
	"payout-core/pkg/errno"
)

// PayoutCheckRunner 手动触发自动打款检查，与定时任务共用锁 (service.CronService)
type PayoutCheckRunner interface {
	CheckNow(ctx context.Context, now time.Time) (payout.AutomatedCheckResult, error)
}

// PayoutHandler 管理端: 批量打款任务与打款单人工结算
type PayoutHandler struct {
	payouts *payout.Service
	wallets *wallet.Service
	checks  PayoutCheckRunner
	loc     *time.Location
	now     func() time.Time
}

func NewPayoutHandler(payouts *payout.Service, wallets *wallet.Service, checks PayoutCheckRunner, loc *time.Location) *PayoutHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &PayoutHandler{payouts: payouts, wallets: wallets, checks: checks, loc: loc, now: time.Now}
}

// ListJobs 任务列表
// @Summary List payout jobs
// @Tags Admin
// @Produce json
// @Param status query string false "pending|processing|completed|failed"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Param limit query int false "Page size (max 200)"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Response{data=payout.JobPage}
// @Router /api/v1/admin/payout-jobs [get]
func (h *PayoutHandler) ListJobs(c *gin.Context) {
	var q request.PayoutJobListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BindError(c, err)
		return
	}
	filter := store.PayoutJobFilter{Status: model.JobStatus(q.Status), Limit: q.Limit, Offset: q.Offset}
	if q.DateFrom != "" {
		from, err := parseDay(q.DateFrom, h.loc)
		if err != nil {
			response.BindError(c, err)
			return
		}
		filter.DateFrom = &from
	}
	if q.DateTo != "" {
		to, err := parseDay(q.DateTo, h.loc)
		if err != nil {
			response.BindError(c, err)
			return
		}
		filter.DateTo = &to
	}

	page, err := h.payouts.GetPayoutJobs(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, page)
}

// GetJob 任务详情 (含快照)
// @Summary Get a payout job
// @Tags Admin
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Response{data=model.PayoutJob}
// @Router /api/v1/admin/payout-jobs/{id} [get]
func (h *PayoutHandler) GetJob(c *gin.Context) {
	job, err := h.payouts.GetPayoutJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, job)
}

// ScheduleJob 按当前余额快照建任务，不立即处理
// @Summary Schedule a payout job
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body request.SchedulePayoutJobRequest true "Schedule"
// @Success 200 {object} response.Response{data=model.PayoutJob}
// @Router /api/v1/admin/payout-jobs [post]
func (h *PayoutHandler) ScheduleJob(c *gin.Context) {
	var req request.SchedulePayoutJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	date := h.now().In(h.loc)
	if req.ScheduledDate != "" {
		d, err := parseDay(req.ScheduledDate, h.loc)
		if err != nil {
			response.BindError(c, err)
			return
		}
		date = d
	}
	job, err := h.payouts.SchedulePayoutJob(c.Request.Context(), date, req.MinimumAmount)
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, job)
}

// ProcessJob 处理 pending 任务；同一任务只能被处理一次
// @Summary Process a pending payout job
// @Tags Admin
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Response{data=payout.JobResult}
// @Router /api/v1/admin/payout-jobs/{id}/process [post]
func (h *PayoutHandler) ProcessJob(c *gin.Context) {
	res, err := h.payouts.ProcessPayoutJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, res)
}

// RetryJob 只重试失败任务中失败的创作者
// @Summary Retry the failed subset of a payout job
// @Tags Admin
// @Produce json
// @Param id path string true "Failed job ID"
// @Success 200 {object} response.Response{data=payout.JobResult}
// @Router /api/v1/admin/payout-jobs/{id}/retry [post]
func (h *PayoutHandler) RetryJob(c *gin.Context) {
	res, err := h.payouts.RetryFailedPayouts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, res)
}

// EligibleCreators 只读预览
// @Summary Preview eligible creators
// @Tags Admin
// @Produce json
// @Param minimum query string false "Minimum payout amount" default(0)
// @Success 200 {object} response.Response{data=[]payout.EligibleCreator}
// @Router /api/v1/admin/eligible-creators [get]
func (h *PayoutHandler) EligibleCreators(c *gin.Context) {
	minimum := decimal.Zero
	if raw := c.Query("minimum"); raw != "" {
		m, err := decimal.NewFromString(raw)
		if err != nil {
			response.Error(c, errno.ErrBind.WithMessage("minimum must be a decimal"))
			return
		}
		minimum = m
	}
	out, err := h.payouts.GetEligibleCreators(c.Request.Context(), minimum)
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, out)
}

// RunCheck 手动触发一次自动打款检查
// @Summary Run the automated payout check now
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Response{data=payout.AutomatedCheckResult}
// @Router /api/v1/admin/payout-check [post]
func (h *PayoutHandler) RunCheck(c *gin.Context) {
	res, err := h.checks.CheckNow(c.Request.Context(), h.now().In(h.loc))
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	if !res.Success {
		response.Error(c, errno.InternalServerError.WithMessage(res.Error))
		return
	}
	response.Success(c, res)
}

// CompleteRequest 线下打款完成
// @Summary Mark a manual payout request as completed
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Payout request ID"
// @Param request body request.CompletePayoutRequest false "External reference"
// @Success 200 {object} response.Response{data=model.PayoutRequest}
// @Router /api/v1/admin/payout-requests/{id}/complete [post]
func (h *PayoutHandler) CompleteRequest(c *gin.Context) {
	var req request.CompletePayoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BindError(c, err)
			return
		}
	}
	pr, err := h.wallets.CompleteManualPayout(c.Request.Context(), c.Param("id"), req.ExternalPayoutID)
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, pr)
}

// FailRequest 线下打款失败，金额退回余额
// @Summary Mark a manual payout request as failed
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Payout request ID"
// @Param request body request.FailPayoutRequest true "Reason"
// @Success 200 {object} response.Response{data=model.PayoutRequest}
// @Router /api/v1/admin/payout-requests/{id}/fail [post]
func (h *PayoutHandler) FailRequest(c *gin.Context) {
	var req request.FailPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	pr, err := h.wallets.FailManualPayout(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, toErrno(err))
		return
	}
	response.Success(c, pr)
}
