// ABOUTME: Tests for JWT token generation and verification
// ABOUTME: Covers round trips, role claims, expiry, and tampered tokens

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helplane/helplane/internal/store"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.Generate(Identity{ID: "user-1", Role: store.RoleAgent}, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	identity, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.ID)
	assert.Equal(t, store.RoleAgent, identity.Role)
}

func TestJWTVerifier_Expired(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.Generate(Identity{ID: "user-1", Role: store.RoleCandidate}, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))
	other := NewJWTVerifier([]byte("other-secret"))

	token, err := v.Generate(Identity{ID: "user-1", Role: store.RoleCandidate}, time.Hour)
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifier_Garbage(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	_, err := v.Verify("not.a.token")
	assert.Error(t, err)
}

func TestJWTVerifier_UnknownRole(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.Generate(Identity{ID: "user-1", Role: store.Role("superuser")}, time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.Error(t, err)
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantErr   bool
	}{
		{"valid", "Bearer abc123", "abc123", false},
		{"missing header", "", "", true},
		{"wrong scheme", "Basic abc123", "", true},
		{"empty token", "Bearer ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, errMsg := ExtractBearerToken(tt.header)
			if tt.wantErr {
				assert.NotEmpty(t, errMsg)
			} else {
				assert.Empty(t, errMsg)
				assert.Equal(t, tt.wantToken, token)
			}
		})
	}
}
