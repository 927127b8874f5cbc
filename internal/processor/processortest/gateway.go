// Package processortest testify mock 网关
package processortest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"payout-core/internal/processor"
)

type Gateway struct {
	mock.Mock
}

var _ processor.Gateway = (*Gateway)(nil)

func (g *Gateway) CreatePaymentIntent(ctx context.Context, params processor.PaymentIntentParams) (*processor.PaymentIntent, error) {
	args := g.Called(ctx, params)
	pi, _ := args.Get(0).(*processor.PaymentIntent)
	return pi, args.Error(1)
}

func (g *Gateway) Transfer(ctx context.Context, params processor.TransferParams) (*processor.Transfer, error) {
	args := g.Called(ctx, params)
	t, _ := args.Get(0).(*processor.Transfer)
	return t, args.Error(1)
}

func (g *Gateway) GetBalance(ctx context.Context, account string) (*processor.Balance, error) {
	args := g.Called(ctx, account)
	b, _ := args.Get(0).(*processor.Balance)
	return b, args.Error(1)
}

func (g *Gateway) CreateConnectedAccount(ctx context.Context, email string) (*processor.ConnectedAccount, error) {
	args := g.Called(ctx, email)
	a, _ := args.Get(0).(*processor.ConnectedAccount)
	return a, args.Error(1)
}

func (g *Gateway) CreateOnboardingLink(ctx context.Context, accountID, returnURL, refreshURL string) (*processor.OnboardingLink, error) {
	args := g.Called(ctx, accountID, returnURL, refreshURL)
	l, _ := args.Get(0).(*processor.OnboardingLink)
	return l, args.Error(1)
}
