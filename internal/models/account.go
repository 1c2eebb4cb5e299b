// Package models defines data structures for Carteira
package models

import "time"

// AccountType identifies the brokerage context an account lives in.
type AccountType string

const (
	AccountBTGBR         AccountType = "BTG_BR"
	AccountXP            AccountType = "XP"
	AccountBTGCayman     AccountType = "BTG_CAYMAN"
	AccountTesouroDireto AccountType = "TESOURO_DIRETO"
	AccountOther         AccountType = "OTHER"
)

// ValidAccountTypes is the set of accepted account types.
var ValidAccountTypes = map[AccountType]bool{
	AccountBTGBR:         true,
	AccountXP:            true,
	AccountBTGCayman:     true,
	AccountTesouroDireto: true,
	AccountOther:         true,
}

// Account is a brokerage holding context owned by a user.
// (UserID, Name) is unique while the account is active. Deletion is soft.
type Account struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	Currency  string      `json:"currency"` // 3-letter ISO
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
