package request

import "github.com/shopspring/decimal"

type SchedulePayoutJobRequest struct {
	// 为空时取当天
	ScheduledDate string          `json:"scheduled_date" binding:"omitempty,datetime=2006-01-02"`
	MinimumAmount decimal.Decimal `json:"minimum_amount"`
}

type PayoutJobListQuery struct {
	Status   string `form:"status" binding:"omitempty,oneof=pending processing completed failed"`
	DateFrom string `form:"date_from" binding:"omitempty,datetime=2006-01-02"`
	DateTo   string `form:"date_to" binding:"omitempty,datetime=2006-01-02"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset   int    `form:"offset" binding:"omitempty,min=0"`
}

type CompletePayoutRequest struct {
	ExternalPayoutID string `json:"external_payout_id"`
}

type FailPayoutRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type PlatformAccountRequest struct {
	Name                string          `json:"name" binding:"required"`
	ProcessorAccountID  string          `json:"processor_account_id"`
	IsPrimary           bool            `json:"is_primary"`
	AutoPayoutEnabled   bool            `json:"auto_payout_enabled"`
	PayoutSchedule      string          `json:"payout_schedule" binding:"omitempty,oneof=daily weekly monthly"`
	PayoutDay           int             `json:"payout_day"`
	MinimumPayoutAmount decimal.Decimal `json:"minimum_payout_amount"`
	Currency            string          `json:"currency" binding:"omitempty,len=3"`
}

// UpdatePlatformAccountRequest 只更新出现的字段
type UpdatePlatformAccountRequest struct {
	Name                *string          `json:"name"`
	ProcessorAccountID  *string          `json:"processor_account_id"`
	IsPrimary           *bool            `json:"is_primary"`
	IsActive            *bool            `json:"is_active"`
	AutoPayoutEnabled   *bool            `json:"auto_payout_enabled"`
	PayoutSchedule      *string          `json:"payout_schedule" binding:"omitempty,oneof=daily weekly monthly"`
	PayoutDay           *int             `json:"payout_day"`
	MinimumPayoutAmount *decimal.Decimal `json:"minimum_payout_amount"`
}

type FeeRequest struct {
	Percentage decimal.Decimal `json:"percentage" binding:"required"`
}

type StripeConnectRequest struct {
	Email string `json:"email" binding:"required,email"`
}
