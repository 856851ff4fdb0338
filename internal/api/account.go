package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/anochat/internal/chat"
)

// loginRatePerSecond throttles anonymous account creation per client.
const loginRatePerSecond = 2

// login authenticates an anonymous account: the username is the literal
// "ANO" and the password is the account's uuid. An unknown uuid creates a
// fresh user, so login doubles as registration.
func (s *Server) login(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")

	if username != "ANO" {
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported account type")
	}

	accountID, err := uuid.Parse(password)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid account id")
	}

	ctx := c.Request().Context()

	userID, err := s.store.UserByAccountID(ctx, accountID.String())
	if errors.Is(err, chat.ErrNotFound) {
		userID, err = s.store.CreateAnonymousUser(ctx, accountID.String())
		if err == nil {
			log.Info().Int64("user_id", userID).Msg("Created anonymous user")
		}
	}
	if err != nil {
		return httpError(err)
	}

	sessionID, err := s.store.CreateSession(ctx, userID, c.RealIP())
	if err != nil {
		return httpError(err)
	}

	token, err := issueToken(s.cfg.Server.AuthSecret, userID, sessionID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue token")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.SetCookie(newAuthCookie(token))

	return c.JSON(http.StatusOK, map[string]interface{}{
		"userId":    userID,
		"sessionId": sessionID,
		"token":     token,
	})
}

// logout clears the identity cookie. The session row stays; it is inert
// without the token.
func (s *Server) logout(c echo.Context) error {
	c.SetCookie(clearAuthCookie())
	return c.NoContent(http.StatusNoContent)
}
