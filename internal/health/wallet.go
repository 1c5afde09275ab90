package health

import (
	"context"
	"fmt"
)

// IdentityLister enumerates the identities enrolled in a credential store.
type IdentityLister interface {
	List() ([]string, error)
}

// WalletChecker implements health checking for the on-disk wallet. The
// gateway can start with an empty wallet, so only readability is checked,
// not the presence of any particular identity.
type WalletChecker struct {
	wallet IdentityLister
}

// NewWalletChecker creates a new wallet health checker.
func NewWalletChecker(wallet IdentityLister) *WalletChecker {
	return &WalletChecker{wallet: wallet}
}

// HealthCheck lists the wallet directory and reports whether it is readable.
func (c *WalletChecker) HealthCheck(_ context.Context) error {
	if _, err := c.wallet.List(); err != nil {
		return fmt.Errorf("list wallet identities: %w", err)
	}
	return nil
}
