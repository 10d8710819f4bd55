package accounts

import (
	"strings"

	"github.com/odyssey-erp/ledger/internal/accounting/shared"
)

// CreateGroupInput describes a new top-level group.
type CreateGroupInput struct {
	Code          string
	Name          string
	Class         AccountClass
	NormalBalance shared.Side
	ActorID       int64
}

// Validate ensures group input meets minimum criteria.
func (in *CreateGroupInput) Validate() error {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" {
		return shared.Invalid("code", "required")
	}
	if in.Name == "" {
		return shared.Invalid("name", "required")
	}
	class, err := ParseClass(string(in.Class))
	if err != nil {
		return shared.Invalid("class", err.Error())
	}
	in.Class = class
	if in.NormalBalance == "" {
		in.NormalBalance = class.DefaultNormalBalance()
	}
	if !in.NormalBalance.Valid() {
		return shared.Invalid("normal_balance", "must be DEBIT or CREDIT")
	}
	return nil
}

// CreateParentInput describes a parent account under a group.
type CreateParentInput struct {
	GroupID int64
	Code    string
	Name    string
	ActorID int64
}

// Validate ensures parent input meets minimum criteria.
func (in *CreateParentInput) Validate() error {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.GroupID <= 0 {
		return shared.Invalid("group_id", "required")
	}
	if in.Code == "" {
		return shared.Invalid("code", "required")
	}
	if in.Name == "" {
		return shared.Invalid("name", "required")
	}
	return nil
}

// CreateAccountInput describes a posting account under a parent.
type CreateAccountInput struct {
	ParentID int64
	Code     string
	Name     string
	ActorID  int64
}

// Validate ensures account input meets minimum criteria.
func (in *CreateAccountInput) Validate() error {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.ParentID <= 0 {
		return shared.Invalid("parent_id", "required")
	}
	if in.Code == "" {
		return shared.Invalid("code", "required")
	}
	if in.Name == "" {
		return shared.Invalid("name", "required")
	}
	return nil
}
