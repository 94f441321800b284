package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nyumbani/rental/internal/models"
	"nyumbani/rental/internal/utils"
)

// Claims defines the structure of the JWT claims. Role is carried in the
// token so handlers can authorize without a user lookup per request.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateJWT creates a new JWT for a given user.
func GenerateJWT(userID utils.SixID, role models.Role, secretKey string, ttl time.Duration) (string, error) {
	expirationTime := time.Now().Add(ttl)
	claims := &Claims{
		UserID: userID.String(),
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT verifies a JWT string and returns the claims if valid.
func ValidateJWT(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid JWT")
	}

	return claims, nil
}

// Actor resolves the claims into the actor value passed to services.
func (c *Claims) Actor() (models.Actor, error) {
	userID, err := utils.ParseSixID(c.UserID)
	if err != nil {
		return models.Actor{}, fmt.Errorf("invalid user ID in claims: %w", err)
	}
	role := models.Role(c.Role)
	if !role.Valid() {
		return models.Actor{}, fmt.Errorf("invalid role in claims: %q", c.Role)
	}
	return models.Actor{ID: userID, Role: role}, nil
}
