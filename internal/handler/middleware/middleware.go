package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Tonic56/coinfolio/internal/identity"
	"github.com/Tonic56/coinfolio/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	authorizationHeader = "Authorization"
	tokenQueryParam     = "access_token"

	identityCtx = "identity"
	tokenCtx    = "accessToken"
)

var errNoToken = errors.New("auth header is empty")

type Claims struct {
	Email       string `json:"email"`
	AppMetadata struct {
		Provider string `json:"provider"`
	} `json:"app_metadata"`
	jwt.RegisteredClaims
}

// AuthMiddleware rejects requests without a valid HS256 access token.
func AuthMiddleware(jwtSecret string, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, token, err := authenticate(c, jwtSecret)
		if err != nil {
			log.Warn("auth middleware: rejected request", "path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(identityCtx, id)
		c.Set(tokenCtx, token)
		c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present and lets
// anonymous requests through. A malformed token is still rejected.
func OptionalAuth(jwtSecret string, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, token, err := authenticate(c, jwtSecret)
		switch {
		case errors.Is(err, errNoToken):
			c.Next()
			return
		case err != nil:
			log.Warn("optional auth: rejected token", "path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(identityCtx, id)
		c.Set(tokenCtx, token)
		c.Next()
	}
}

// Identity returns the caller attached by one of the middlewares.
func Identity(c *gin.Context) (session.Identity, bool) {
	v, ok := c.Get(identityCtx)
	if !ok {
		return session.Identity{}, false
	}
	id, ok := v.(session.Identity)
	return id, ok
}

func AccessToken(c *gin.Context) string {
	return c.GetString(tokenCtx)
}

func authenticate(c *gin.Context, jwtSecret string) (session.Identity, string, error) {
	token, err := bearerToken(c)
	if err != nil {
		return session.Identity{}, "", err
	}

	id, err := ParseToken(token, jwtSecret)
	if err != nil {
		return session.Identity{}, "", err
	}
	return id, token, nil
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader(authorizationHeader)
	if header == "" {
		// browsers cannot set headers on websocket upgrades
		if q := c.Query(tokenQueryParam); q != "" {
			return q, nil
		}
		return "", errNoToken
	}

	headerParts := strings.Split(header, " ")
	if len(headerParts) != 2 || headerParts[0] != "Bearer" {
		return "", errors.New("invalid auth header format")
	}
	if headerParts[1] == "" {
		return "", errors.New("token is empty")
	}
	return headerParts[1], nil
}

// ParseToken validates an access token and extracts the caller identity.
func ParseToken(tokenString, jwtSecret string) (session.Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return session.Identity{}, errors.New("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return session.Identity{}, errors.New("invalid token payload")
	}

	provider := claims.AppMetadata.Provider
	if provider == "" {
		provider = identity.ProviderEmail
	}

	return session.Identity{UserID: userID, Email: claims.Email, Provider: provider}, nil
}
