package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	authCookieName = "anochat_token"

	// Anonymous accounts have no password recovery, so tokens live long
	// enough that users are effectively never logged out.
	tokenMaxAge = 10 * 365 * 24 * time.Hour

	userIDContextKey    = "user_id"
	sessionIDContextKey = "session_id"
)

// identityClaims are the JWT claims of a logged-in caller: the user id in
// the subject and the acting session id.
type identityClaims struct {
	SessionID int64 `json:"sid"`
	jwt.RegisteredClaims
}

// issueToken signs an identity token for the user/session pair.
func issueToken(secret string, userID, sessionID int64) (string, error) {
	claims := &identityClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenMaxAge)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "anochat",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

func newAuthCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tokenMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func clearAuthCookie() *http.Cookie {
	return &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// requireAuth validates the identity token (cookie, or Bearer header for
// non-browser clients), heals lost session rows through the store, and
// puts the caller's user and session ids on the request context.
func requireAuth(secret string, store Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := tokenFromRequest(c)
			if tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			token, err := jwt.ParseWithClaims(tokenString, &identityClaims{}, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			claims, ok := token.Claims.(*identityClaims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
			}

			userID, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil || userID <= 0 || claims.SessionID <= 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
			}

			if err := store.EnsureSession(c.Request().Context(), claims.SessionID, userID, c.RealIP()); err != nil {
				return httpError(err)
			}

			c.Set(userIDContextKey, userID)
			c.Set(sessionIDContextKey, claims.SessionID)

			return next(c)
		}
	}
}

func tokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(authCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := c.Request().Header.Get("Authorization")
	if parts := strings.Split(authHeader, " "); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func currentUserID(c echo.Context) int64 {
	id, _ := c.Get(userIDContextKey).(int64)
	return id
}

func currentSessionID(c echo.Context) int64 {
	id, _ := c.Get(sessionIDContextKey).(int64)
	return id
}
