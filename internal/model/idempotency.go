package model

import "time"

const (
	IdempotencyInProgress = "IN_PROGRESS"
	IdempotencyCompleted  = "COMPLETED"
)

// IdempotencyKey 接口级幂等记录 (Idempotency-Key 请求头)
type IdempotencyKey struct {
	Key         string    `gorm:"type:varchar(160);primaryKey" json:"key"`
	RequestHash string    `gorm:"type:varchar(64);not null" json:"request_hash"`
	Status      string    `gorm:"type:varchar(16);not null" json:"status"`
	ResponseRef string    `gorm:"type:varchar(64)" json:"response_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (IdempotencyKey) TableName() string {
	return "idempotency_keys"
}
