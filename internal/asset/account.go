package asset

import (
	"context"

	"github.com/jmerrifield20/minipool/pkg/address"
)

// Account is a Token bound to one holder. It acts on the holder's behalf:
// Transfer spends the holder's funds and TransferFrom spends the holder's
// allowances. *Account satisfies pool.AssetLedger.
type Account struct {
	token  *Token
	holder address.Address
}

// NewAccount binds token to holder.
func NewAccount(token *Token, holder address.Address) *Account {
	return &Account{token: token, holder: holder}
}

// Holder returns the bound address.
func (a *Account) Holder() address.Address { return a.holder }

// TransferFrom pulls amount from payer to to using the holder's allowance.
func (a *Account) TransferFrom(ctx context.Context, payer, to address.Address, amount uint64) error {
	return a.token.TransferFrom(ctx, a.holder, payer, to, amount)
}

// Transfer sends amount of the holder's funds to to.
func (a *Account) Transfer(ctx context.Context, to address.Address, amount uint64) error {
	return a.token.Transfer(ctx, a.holder, to, amount)
}

// BalanceOf returns the token holdings of holder.
func (a *Account) BalanceOf(_ context.Context, holder address.Address) (uint64, error) {
	return a.token.BalanceOf(holder), nil
}
