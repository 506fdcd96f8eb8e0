package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"taskflow/internal/model"
	"taskflow/internal/service"
	"taskflow/pkg/response"
)

const (
	AccessTokenCookie = "access_token"
	// TokenTTL is the lifetime of an access token
	TokenTTL = 24 * time.Hour

	actorKey = "actor"
)

// Claims carried by access tokens
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies access tokens
type Authenticator struct {
	secret       []byte
	secureCookie bool
	now          func() time.Time
}

// NewAuthenticator builds an Authenticator. secureCookie switches cookies to
// SameSite=None; Secure for cross-origin deployments.
func NewAuthenticator(secret string, secureCookie bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), secureCookie: secureCookie, now: time.Now}
}

// IssueToken signs an HS256 access token
func (a *Authenticator) IssueToken(userID uuid.UUID, username, role string) (string, time.Time, error) {
	expiresAt := a.now().Add(TokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(a.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseToken verifies tokenString and returns the caller it identifies
func (a *Authenticator) ParseToken(tokenString string) (service.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return service.Actor{}, errors.New("invalid token")
	}

	if !model.ValidRole(claims.Role) {
		return service.Actor{}, errors.New("unknown role in token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return service.Actor{}, errors.New("invalid subject in token")
	}
	return service.Actor{UserID: userID, Username: claims.Username, Role: claims.Role}, nil
}

// SetTokenCookie stores the access token as an HttpOnly cookie
func (a *Authenticator) SetTokenCookie(c *gin.Context, token string) {
	a.setSameSite(c)
	c.SetCookie(AccessTokenCookie, token, int(TokenTTL.Seconds()), "/", "", a.secureCookie, true)
}

// ClearTokenCookie removes the access token cookie
func (a *Authenticator) ClearTokenCookie(c *gin.Context) {
	a.setSameSite(c)
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", a.secureCookie, true)
}

func (a *Authenticator) setSameSite(c *gin.Context) {
	if a.secureCookie {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
}

// Authenticate requires a valid token from the cookie or a Bearer header and
// stores the caller on the context.
func (a *Authenticator) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.authenticate(c) {
			c.Next()
		}
	}
}

// RequireRole authenticates and checks the caller's role against allowedRoles
func (a *Authenticator) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticate(c) {
			return
		}

		actor := CurrentActor(c)
		for _, role := range allowedRoles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// RequireCapability authenticates and checks the caller's role carries every capability
func (a *Authenticator) RequireCapability(capabilities ...model.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticate(c) {
			return
		}

		actor := CurrentActor(c)
		for _, required := range capabilities {
			if !model.Can(actor.Role, required) {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission '"+string(required)+"'"))
				return
			}
		}
		c.Next()
	}
}

func (a *Authenticator) authenticate(c *gin.Context) bool {
	tokenString, cookieErr := c.Cookie(AccessTokenCookie)
	if cookieErr != nil || tokenString == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return false
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
			return false
		}
		tokenString = parts[1]
	}

	actor, err := a.ParseToken(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid or expired token"))
		return false
	}

	c.Set(actorKey, actor)
	return true
}

// CurrentActor returns the caller stored by Authenticate
func CurrentActor(c *gin.Context) service.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(service.Actor); ok {
			return actor
		}
	}
	return service.Actor{}
}
