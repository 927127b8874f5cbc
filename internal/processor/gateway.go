// Package processor 支付处理方 (Stripe Connect) 网关
package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	ModeLive    = "live"
	ModeSandbox = "sandbox"
)

var ErrMissingIdempotencyKey = errors.New("transfer requires an idempotency key")

// Gateway 处理方能力。Service 只依赖这个接口，live / sandbox 由配置决定
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*PaymentIntent, error)
	Transfer(ctx context.Context, params TransferParams) (*Transfer, error)
	// GetBalance account 为空表示平台自身
	GetBalance(ctx context.Context, account string) (*Balance, error)
	CreateConnectedAccount(ctx context.Context, email string) (*ConnectedAccount, error)
	CreateOnboardingLink(ctx context.Context, accountID, returnURL, refreshURL string) (*OnboardingLink, error)
}

type PaymentIntentParams struct {
	Amount     decimal.Decimal
	Currency   string
	CustomerID string
	// OnBehalfOf 资金落到的平台 connected account
	OnBehalfOf string
	Metadata   map[string]string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
}

type TransferParams struct {
	Amount         decimal.Decimal
	Currency       string
	Destination    string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

type Transfer struct {
	ID          string
	Amount      decimal.Decimal
	Destination string
}

type Balance struct {
	Available decimal.Decimal
	Pending   decimal.Decimal
	Currency  string
}

type ConnectedAccount struct {
	ID string
}

type OnboardingLink struct {
	URL string
}

// Error 处理方返回的业务错误
type Error struct {
	Op      string
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Config 网关配置
type Config struct {
	Mode              string
	SecretKey         string
	MaxNetworkRetries int64
}

// New 按 mode 选择实现；live 必须配置 secret key
func New(cfg Config) (Gateway, error) {
	switch cfg.Mode {
	case ModeLive:
		if cfg.SecretKey == "" {
			return nil, errors.New("stripe.secret_key is required in live mode")
		}
		return NewStripeGateway(cfg.SecretKey, cfg.MaxNetworkRetries), nil
	case ModeSandbox, "":
		return NewSandboxGateway(), nil
	default:
		return nil, fmt.Errorf("unknown processor mode %q", cfg.Mode)
	}
}
