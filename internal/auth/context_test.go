package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	return c
}

func TestGetIdentityFromContext_Success(t *testing.T) {
	c := newTestContext()
	SetIdentity(c, &Claims{UserID: 123, Username: "alice"})

	identity, err := GetIdentityFromContext(c)

	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: 123, Username: "alice"}, identity)
}

func TestGetUserIDFromContext_NotFound(t *testing.T) {
	c := newTestContext()

	userID, err := GetUserIDFromContext(c)

	assert.Equal(t, 0, userID)
	assert.ErrorContains(t, err, "user ID not found in context")
}

func TestGetUserIDFromContext_InvalidType(t *testing.T) {
	c := newTestContext()
	c.Set(UserIDKey, "not-an-int")

	userID, err := GetUserIDFromContext(c)

	assert.Equal(t, 0, userID)
	assert.ErrorContains(t, err, "invalid user ID type")
}

func TestGetIdentityFromContext_Missing(t *testing.T) {
	c := newTestContext()

	_, err := GetIdentityFromContext(c)

	assert.Error(t, err)
}
