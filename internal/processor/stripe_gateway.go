package processor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"

	"payout-core/pkg/logger"
	"payout-core/pkg/money"
	"payout-core/pkg/monitor"
)

// StripeGateway stripe-go 实现，每个实例持有自己的 client，不修改 stripe 包级状态
type StripeGateway struct {
	sc *client.API
}

func NewStripeGateway(secretKey string, maxNetworkRetries int64) *StripeGateway {
	// 网络重试会复用同一个 Idempotency-Key，不会重复转账
	cfg := &stripe.BackendConfig{MaxNetworkRetries: stripe.Int64(maxNetworkRetries)}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}
	return &StripeGateway{sc: client.New(secretKey, backends)}
}

var _ Gateway = (*StripeGateway)(nil)

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, p PaymentIntentParams) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(money.ToMinorUnits(p.Amount)),
		Currency: stripe.String(strings.ToLower(p.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	if p.OnBehalfOf != "" {
		params.OnBehalfOf = stripe.String(p.OnBehalfOf)
		params.TransferData = &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(p.OnBehalfOf),
		}
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	start := time.Now()
	pi, err := g.sc.PaymentIntents.New(params)
	observe("payment_intent", start, err)
	if err != nil {
		return nil, wrapStripeError("create payment intent", err)
	}
	return &PaymentIntent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

func (g *StripeGateway) Transfer(ctx context.Context, p TransferParams) (*Transfer, error) {
	if p.IdempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(money.ToMinorUnits(p.Amount)),
		Currency:    stripe.String(strings.ToLower(p.Currency)),
		Destination: stripe.String(p.Destination),
	}
	params.Context = ctx
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	params.SetIdempotencyKey(p.IdempotencyKey)

	start := time.Now()
	t, err := g.sc.Transfers.New(params)
	observe("transfer", start, err)
	if err != nil {
		logger.Warn("stripe transfer failed",
			zap.String("destination", p.Destination),
			zap.String("idempotency_key", p.IdempotencyKey),
			zap.Error(err))
		return nil, wrapStripeError("create transfer", err)
	}
	return &Transfer{ID: t.ID, Amount: money.FromMinorUnits(t.Amount), Destination: p.Destination}, nil
}

func (g *StripeGateway) GetBalance(ctx context.Context, acct string) (*Balance, error) {
	params := &stripe.BalanceParams{}
	params.Context = ctx
	if acct != "" {
		params.SetStripeAccount(acct)
	}

	start := time.Now()
	b, err := g.sc.Balance.Get(params)
	observe("balance", start, err)
	if err != nil {
		return nil, wrapStripeError("get balance", err)
	}

	out := &Balance{Available: decimal.Zero, Pending: decimal.Zero}
	for _, a := range b.Available {
		out.Available = out.Available.Add(money.FromMinorUnits(a.Amount))
		out.Currency = strings.ToUpper(string(a.Currency))
	}
	for _, a := range b.Pending {
		out.Pending = out.Pending.Add(money.FromMinorUnits(a.Amount))
	}
	return out, nil
}

func (g *StripeGateway) CreateConnectedAccount(ctx context.Context, email string) (*ConnectedAccount, error) {
	params := &stripe.AccountParams{
		Type: stripe.String(string(stripe.AccountTypeExpress)),
	}
	params.Context = ctx
	if email != "" {
		params.Email = stripe.String(email)
	}

	start := time.Now()
	acct, err := g.sc.Accounts.New(params)
	observe("account", start, err)
	if err != nil {
		return nil, wrapStripeError("create account", err)
	}
	return &ConnectedAccount{ID: acct.ID}, nil
}

func (g *StripeGateway) CreateOnboardingLink(ctx context.Context, accountID, returnURL, refreshURL string) (*OnboardingLink, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		ReturnURL:  stripe.String(returnURL),
		RefreshURL: stripe.String(refreshURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	start := time.Now()
	link, err := g.sc.AccountLinks.New(params)
	observe("account_link", start, err)
	if err != nil {
		return nil, wrapStripeError("create account link", err)
	}
	return &OnboardingLink{URL: link.URL}, nil
}

func wrapStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &Error{Op: op, Code: string(stripeErr.Code), Message: stripeErr.Msg}
	}
	return &Error{Op: op, Message: err.Error()}
}

func observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	monitor.Business.ProcessorCallDuration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}
