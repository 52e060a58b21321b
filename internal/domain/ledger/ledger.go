// Package ledger holds wallet and ledger entry types.
package ledger

import (
	"fmt"
	"time"
)

// Reason is why a ledger entry was written.
type Reason string

// Ledger reasons.
const (
	ReasonUnlock     Reason = "contact_unlock"
	ReasonTopUp      Reason = "top_up"
	ReasonAdjustment Reason = "adjustment"
	ReasonRefund     Reason = "refund"
)

// Reference points an entry at the thing it paid for.
type Reference struct {
	Type string
	ID   string
}

// Entry is one append-only balance change. The sum of a wallet's entries
// equals its balance; BalanceAfter is the balance right after this entry.
type Entry struct {
	ID           int64
	PersonID     string
	Amount       int64
	Reason       Reason
	Reference    Reference
	BalanceAfter int64
	CreatedAt    time.Time
}

// DebitResult reports a conditional debit. Applied is false when the
// balance was too low; nothing was written in that case.
type DebitResult struct {
	Applied bool
	Balance int64
	Entry   Entry
}

// ValidateAmount rejects non-positive amounts.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", amount)
	}
	return nil
}
