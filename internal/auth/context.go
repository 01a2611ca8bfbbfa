package auth

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

const (
	UserIDKey   = "userID"
	UsernameKey = "username"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID   int
	Username string
}

// SetIdentity stores the authenticated caller in the Gin context.
func SetIdentity(c *gin.Context, claims *Claims) {
	c.Set(UserIDKey, claims.UserID)
	c.Set(UsernameKey, claims.Username)
}

// GetUserIDFromContext extracts userID from Gin context
func GetUserIDFromContext(c *gin.Context) (int, error) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, fmt.Errorf("user ID not found in context")
	}

	id, ok := userID.(int)
	if !ok {
		return 0, fmt.Errorf("invalid user ID type")
	}

	return id, nil
}

func GetIdentityFromContext(c *gin.Context) (Identity, error) {
	id, err := GetUserIDFromContext(c)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: id, Username: c.GetString(UsernameKey)}, nil
}
