package processor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"payout-core/pkg/safe_random"
)

// SandboxGateway 本地 / 测试用网关，不访问网络。
// 与真实处理方一致: 相同 Idempotency-Key 返回同一笔转账
type SandboxGateway struct {
	mu          sync.Mutex
	transfers   map[string]*Transfer // idempotency key -> transfer
	failures    map[string]error     // destination -> 注入的错误
	balance     Balance
	transferred decimal.Decimal
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		transfers:   make(map[string]*Transfer),
		failures:    make(map[string]error),
		balance:     Balance{Available: decimal.Zero, Pending: decimal.Zero, Currency: "USD"},
		transferred: decimal.Zero,
	}
}

var _ Gateway = (*SandboxGateway)(nil)

// FailTransfersTo 之后发往 destination 的转账都返回 err；err 为 nil 时恢复正常
func (g *SandboxGateway) FailTransfersTo(destination string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failures, destination)
		return
	}
	g.failures[destination] = err
}

// SetBalance 设置平台余额
func (g *SandboxGateway) SetBalance(available, pending decimal.Decimal, currency string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balance = Balance{Available: available, Pending: pending, Currency: currency}
}

// TransferCount 实际执行 (去重后) 的转账笔数
func (g *SandboxGateway) TransferCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.transfers)
}

// Transferred 累计转出金额
func (g *SandboxGateway) Transferred() decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.transferred
}

func (g *SandboxGateway) CreatePaymentIntent(ctx context.Context, p PaymentIntentParams) (*PaymentIntent, error) {
	if !p.Amount.IsPositive() {
		return nil, &Error{Op: "create payment intent", Code: "amount_too_small", Message: "amount must be positive"}
	}
	id := sandboxID("pi")
	return &PaymentIntent{ID: id, ClientSecret: id + "_secret_" + sandboxID("cs"), Status: "requires_payment_method"}, nil
}

func (g *SandboxGateway) Transfer(ctx context.Context, p TransferParams) (*Transfer, error) {
	if p.IdempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if t, ok := g.transfers[p.IdempotencyKey]; ok {
		cp := *t
		return &cp, nil
	}
	if err, ok := g.failures[p.Destination]; ok {
		return nil, err
	}
	if !strings.HasPrefix(p.Destination, "acct_") {
		return nil, &Error{Op: "create transfer", Code: "resource_missing", Message: fmt.Sprintf("No such destination: '%s'", p.Destination)}
	}

	t := &Transfer{ID: sandboxID("tr"), Amount: p.Amount, Destination: p.Destination}
	g.transfers[p.IdempotencyKey] = t
	g.transferred = g.transferred.Add(p.Amount)
	cp := *t
	return &cp, nil
}

func (g *SandboxGateway) GetBalance(ctx context.Context, account string) (*Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := g.balance
	return &b, nil
}

func (g *SandboxGateway) CreateConnectedAccount(ctx context.Context, email string) (*ConnectedAccount, error) {
	return &ConnectedAccount{ID: sandboxID("acct")}, nil
}

func (g *SandboxGateway) CreateOnboardingLink(ctx context.Context, accountID, returnURL, refreshURL string) (*OnboardingLink, error) {
	if accountID == "" {
		return nil, &Error{Op: "create account link", Code: "parameter_missing", Message: "account is required"}
	}
	return &OnboardingLink{URL: fmt.Sprintf("https://connect.sandbox.local/setup/%s?return_url=%s", accountID, returnURL)}, nil
}

func sandboxID(prefix string) string {
	suffix, err := safe_random.GenerateRandomHexString(12)
	if err != nil {
		suffix = "000000000000"
	}
	return prefix + "_sandbox_" + suffix
}
