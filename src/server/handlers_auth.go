package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"trade-sim/src/auth"
	"trade-sim/src/helpers"
	"trade-sim/src/models"
)

// -----------------------------------------------------------------------------
// Account creation and login
// -----------------------------------------------------------------------------

func (s *Server) postCreateAccount(c *gin.Context) {
	var req models.MCreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, helpers.NewValidationError("invalid request body: %v", err))
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		respondError(c, helpers.NewValidationError("a valid email is required"))
		return
	}
	if len(req.Password) < 8 {
		respondError(c, helpers.NewValidationError("password must be at least 8 characters"))
		return
	}
	if req.Password != req.ConfirmPassword {
		respondError(c, helpers.NewValidationError("passwords do not match"))
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = strings.SplitN(req.Email, "@", 2)[0]
	}

	if _, err := s.DB.GetUserByEmail(req.Email); err == nil {
		respondError(c, helpers.NewValidationError("email %s is already registered", req.Email))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now().UTC()
	user := models.MUser{
		Username:                 username,
		Email:                    req.Email,
		PasswordHash:             hash,
		CashBalanceDollars:       s.Config.Trading.InitialCashDollars,
		InitialInvestmentDollars: s.Config.Trading.InitialCashDollars,
		NotificationsOn:          true,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	created, err := s.DB.CreateUser(user)
	if err != nil {
		respondError(c, err)
		return
	}
	s.Ledger.Register(created)

	token, err := s.Auth.IssueToken(created.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	s.Logger.Info("Created account %d (%s)", created.UserID, created.Email)
	respondOK(c, models.MAuthResult{Token: token, UserId: created.UserID})
}

// -----------------------------------------------------------------------------

func (s *Server) postLogin(c *gin.Context) {
	var req models.MLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, helpers.NewValidationError("invalid request body: %v", err))
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))

	user, err := s.DB.GetUserByEmail(email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		// Same answer for unknown email and wrong password.
		respondError(c, helpers.NewValidationError("invalid email or password"))
		return
	}

	token, err := s.Auth.IssueToken(user.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, models.MAuthResult{Token: token, UserId: user.UserID})
}
