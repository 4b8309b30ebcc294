package models

// -----------------------------------------------------------------------------
// Request bodies (JSON keys are the client contract)
// -----------------------------------------------------------------------------

// MCreateAccountRequest opens a new funded account.
type MCreateAccountRequest struct {
	Email           string `json:"Email"`
	Password        string `json:"Password"`
	ConfirmPassword string `json:"ConfirmPassword"`
	Username        string `json:"Username"`
}

// MLoginRequest exchanges credentials for a bearer token.
type MLoginRequest struct {
	Email    string `json:"Email"`
	Password string `json:"Password"`
}

// MTradeRequest is the body of buy-stocks and sell-stocks.
type MTradeRequest struct {
	UserID   int64  `json:"userId"`
	Ticker   string `json:"ticker"`
	Quantity int64  `json:"quantity"`
}

// MWatchlistAddRequest adds a target-price subscription.
type MWatchlistAddRequest struct {
	UserID      int64   `json:"userId"`
	StockID     int64   `json:"stockId"`
	TargetPrice float64 `json:"targetPrice"`
}

// MUserSettings carries the mutable user preferences.
type MUserSettings struct {
	NotificationsOn bool `json:"notificationsOn"`
}

// MUpdateUserSettingRequest updates user preferences.
type MUpdateUserSettingRequest struct {
	UserID   int64         `json:"userId"`
	Settings MUserSettings `json:"settings"`
}
