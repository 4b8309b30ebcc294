package models

import "time"

// MUser represents a trading account owner. PasswordHash never leaves the
// backend.
type MUser struct {
	UserID             int64     `json:"UserID"`
	Username           string    `json:"Username"`
	Email              string    `json:"Email"`
	CashBalanceDollars float64   `json:"CashBalanceDollars"`
	NotificationsOn    bool      `json:"NotificationsOn"`
	CreatedAt          time.Time `json:"CreatedAt"`
	UpdatedAt          time.Time `json:"UpdatedAt"`

	PasswordHash             string  `json:"-"`
	InitialInvestmentDollars float64 `json:"-"`
}

// -----------------------------------------------------------------------------

// MAuthResult is returned by login and create-account.
type MAuthResult struct {
	Token  string `json:"Token"`
	UserId int64  `json:"UserId"`
}
