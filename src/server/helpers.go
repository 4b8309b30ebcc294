package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"trade-sim/src/auth"
	"trade-sim/src/helpers"
	"trade-sim/src/models"
)

// context key set by requireAuth
const ctxAuthUserID = "authUserID"

// -----------------------------------------------------------------------------
// Response envelope
// -----------------------------------------------------------------------------

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, models.MAPIResponse{Success: true, Data: data})
}

// respondError maps business rejections to a 200 envelope with ErrorMessage
// set, and everything else to an opaque 500. Transport status stays 200 for
// rule rejections: the client branches on Success, not the HTTP code.
func respondError(c *gin.Context, err error) {
	if helpers.IsBusinessError(err) {
		c.JSON(http.StatusOK, models.MAPIResponse{Success: false, ErrorMessage: err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, models.MAPIResponse{Success: false, ErrorMessage: "internal error"})
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.MAPIResponse{Success: false, ErrorMessage: message})
}

// -----------------------------------------------------------------------------
// Query parsing
// -----------------------------------------------------------------------------

func queryInt64(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, helpers.NewValidationError("missing query parameter %q", name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, helpers.NewValidationError("invalid %q: %v", name, err)
	}
	return v, nil
}

func queryIntDefault(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// -----------------------------------------------------------------------------
// Auth middleware
// -----------------------------------------------------------------------------

// requireAuth validates the bearer token and stashes the authenticated user
// id in the context. WebSocket upgrades carry the token as ?token= instead
// of a header; when require_ws_token is off an upgrade may pass with no
// token at all and the handler trusts the userId parameter.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.IsWebsocket() {
			token := c.Query("token")
			if token == "" {
				if s.Config.Auth.RequireWSToken {
					respondUnauthorized(c, "missing token")
					return
				}
				c.Next()
				return
			}
			userID, err := s.Auth.ParseToken(token)
			if err != nil {
				respondUnauthorized(c, "invalid token")
				return
			}
			c.Set(ctxAuthUserID, userID)
			c.Next()
			return
		}

		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			respondUnauthorized(c, "missing bearer token")
			return
		}

		userID, err := s.Auth.ParseToken(token)
		if err != nil {
			respondUnauthorized(c, "invalid token")
			return
		}

		c.Set(ctxAuthUserID, userID)
		c.Next()
	}
}

// -----------------------------------------------------------------------------

// authorizedUser checks that the request operates on the authenticated
// user's own account.
func (s *Server) authorizedUser(c *gin.Context, userID int64) bool {
	v, exists := c.Get(ctxAuthUserID)
	if !exists {
		// WebSocket upgrade without mandatory token.
		return !s.Config.Auth.RequireWSToken && c.IsWebsocket()
	}
	if v.(int64) != userID {
		respondUnauthorized(c, "token does not match user")
		return false
	}
	return true
}
