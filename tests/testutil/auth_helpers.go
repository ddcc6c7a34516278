package testutil

import (
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/batchplant/plant-api/middleware"
	"github.com/gin-gonic/gin"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, role string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  "https://test.auth0.com/",
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
			Role:  role,
		},
	}
}

// MockAuthMiddleware stores claims in the context the same way EnsureValidToken does
func MockAuthMiddleware(userID, role string) gin.HandlerFunc {
	return MockAuthMiddlewareWithScopes(userID, role)
}

// MockAuthMiddlewareWithScopes is MockAuthMiddleware for a token carrying scopes
func MockAuthMiddlewareWithScopes(userID, role string, scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("validated_claims", MockValidatedClaims(userID, role, scopes))
		c.Next()
	}
}
