package accounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

// AccountClass enumerates statement classifications of a group.
type AccountClass string

const (
	ClassAsset     AccountClass = "ASSET"
	ClassLiability AccountClass = "LIABILITY"
	ClassEquity    AccountClass = "EQUITY"
	ClassIncome    AccountClass = "INCOME"
	ClassExpense   AccountClass = "EXPENSE"
)

// ParseClass normalises a class string.
func ParseClass(s string) (AccountClass, error) {
	c := AccountClass(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case ClassAsset, ClassLiability, ClassEquity, ClassIncome, ClassExpense:
		return c, nil
	case "REVENUE":
		return ClassIncome, nil
	}
	return "", fmt.Errorf("accounting: unknown account class %q", s)
}

// DefaultNormalBalance returns the side on which the class increases.
func (c AccountClass) DefaultNormalBalance() shared.Side {
	if c == ClassAsset || c == ClassExpense {
		return shared.Debit
	}
	return shared.Credit
}

// IsBalanceSheet reports whether the class is carried cumulatively.
func (c AccountClass) IsBalanceSheet() bool {
	return c == ClassAsset || c == ClassLiability || c == ClassEquity
}

// EntityKind names one of the three hierarchy levels.
type EntityKind string

const (
	KindGroup   EntityKind = "group"
	KindParent  EntityKind = "parent"
	KindAccount EntityKind = "account"
)

// ParseKind normalises an entity kind.
func ParseKind(s string) (EntityKind, error) {
	switch EntityKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindGroup, "groups":
		return KindGroup, nil
	case KindParent, "parents":
		return KindParent, nil
	case KindAccount, "accounts":
		return KindAccount, nil
	}
	return "", fmt.Errorf("accounting: unknown entity kind %q", s)
}

// Audit holds the caller-supplied audit fields.
type Audit struct {
	CreatedBy int64
	UpdatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Group is the top classification level and owns the normal balance.
type Group struct {
	ID            int64
	Code          string
	Name          string
	Class         AccountClass
	NormalBalance shared.Side
	IsActive      bool
	Audit
}

// ParentAccount is the aggregation level under a group.
type ParentAccount struct {
	ID       int64
	GroupID  int64
	Code     string
	Name     string
	IsActive bool
	Audit
}

// Account is a posting (leaf) account.
type Account struct {
	ID       int64
	ParentID int64
	Code     string
	Name     string
	IsActive bool
	Audit
}

// LedgerAccount joins an account with its parent and group.
type LedgerAccount struct {
	ID            int64
	Code          string
	Name          string
	IsActive      bool
	ParentID      int64
	ParentCode    string
	ParentName    string
	GroupID       int64
	GroupCode     string
	GroupName     string
	Class         AccountClass
	NormalBalance shared.Side
}

// GroupNode is a group with its parents in hierarchy order.
type GroupNode struct {
	Group
	Parents []ParentNode
}

// ParentNode is a parent account with its accounts in code order.
type ParentNode struct {
	ParentAccount
	Accounts []Account
}
