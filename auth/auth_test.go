package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenManager(t *testing.T) {
	manager := NewTokenManager("test-signing-key", time.Hour)

	t.Run("should round-trip the device identity", func(t *testing.T) {
		req := require.New(t)
		token, err := manager.Generate("device-42")
		req.NoError(err)

		claims, err := manager.Validate(token)
		req.NoError(err)
		req.Equal("device-42", claims.DeviceID)
		req.Equal("filedrop", claims.Issuer)
	})

	t.Run("should reject a token signed with another key", func(t *testing.T) {
		req := require.New(t)
		other := NewTokenManager("another-key", time.Hour)
		token, err := other.Generate("device-42")
		req.NoError(err)

		_, err = manager.Validate(token)
		req.Error(err)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		req := require.New(t)
		expired := NewTokenManager("test-signing-key", -time.Minute)
		token, err := expired.Generate("device-42")
		req.NoError(err)

		_, err = manager.Validate(token)
		req.Error(err)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		_, err := manager.Validate("not.a.jwt")
		require.Error(t, err)
	})
}

func TestPasswordHashing(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("S3cret&Enough!")
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	t.Run("should match the original password", func(t *testing.T) {
		match, err := ComparePassword("S3cret&Enough!", hash)
		req.NoError(err)
		req.True(match)
	})

	t.Run("should not match another password", func(t *testing.T) {
		match, err := ComparePassword("S3cret&Enough?", hash)
		req.NoError(err)
		req.False(match)
	})

	t.Run("two hashes of the same password differ by salt", func(t *testing.T) {
		again, err := HashPassword("S3cret&Enough!")
		req.NoError(err)
		req.NotEqual(hash, again)
	})

	t.Run("should reject a malformed stored hash", func(t *testing.T) {
		_, err := ComparePassword("whatever", "plainly-not-a-hash")
		req.Error(err)
	})
}

func TestValidateRegister(t *testing.T) {
	tests := []struct {
		name    string
		request RegisterRequest
		wantErr bool
	}{
		{"valid", RegisterRequest{DeviceName: "camera-01", Password: "Str0ng&Secret-Pass"}, false},
		{"name too short", RegisterRequest{DeviceName: "ab", Password: "Str0ng&Secret-Pass"}, true},
		{"name with slash", RegisterRequest{DeviceName: "cam/01", Password: "Str0ng&Secret-Pass"}, true},
		{"password too short", RegisterRequest{DeviceName: "camera-01", Password: "Sh0rt&pw"}, true},
		{"no uppercase", RegisterRequest{DeviceName: "camera-01", Password: "weak&secret-pass1"}, true},
		{"no special character", RegisterRequest{DeviceName: "camera-01", Password: "Str0ngSecretPass1"}, true},
		{"no number", RegisterRequest{DeviceName: "camera-01", Password: "Strong&Secret-Pass"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.request)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestPasswordComplexity(t *testing.T) {
	req := require.New(t)
	req.True(isPasswordComplex("Aa1!"))
	req.False(isPasswordComplex("aa1!"))
	req.False(isPasswordComplex("AA1!"))
	req.False(isPasswordComplex("Aaa!"))
	req.False(isPasswordComplex("Aa11"))
}
