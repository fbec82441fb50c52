package repositories

import (
	"testing"

	"filedrop/errors"

	"github.com/stretchr/testify/require"
)

func TestDeviceRepository(t *testing.T) {
	req := require.New(t)
	repository := NewDeviceRepository(openTestDB(t))

	t.Run("should create and fetch a device", func(t *testing.T) {
		id, err := repository.CreateDevice("camera-01", "$argon2id$fake-hash")
		req.NoError(err)
		req.NotEmpty(id)

		device, err := repository.GetDeviceByName("camera-01")
		req.NoError(err)
		req.Equal(id, device.ID)
		req.Equal("camera-01", device.Name)
		req.Equal("$argon2id$fake-hash", device.PasswordHash)
	})

	t.Run("should refuse a duplicate name", func(t *testing.T) {
		_, err := repository.CreateDevice("camera-01", "another-hash")
		req.ErrorIs(err, errors.ErrDeviceAlreadyExists)
	})

	t.Run("should not leak existence of unknown devices", func(t *testing.T) {
		_, err := repository.GetDeviceByName("ghost")
		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}
