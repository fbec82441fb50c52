//go:generate go run go.uber.org/mock/mockgen -source=device.go -destination=../mocks/mock_device_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"filedrop/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IDeviceRepository interface {
	CreateDevice(name, hashedPassword string) (string, error)
	GetDeviceByName(name string) (Device, error)
}

type DeviceRepository struct {
	db *badger.DB
}

func NewDeviceRepository(db *badger.DB) IDeviceRepository {
	return &DeviceRepository{db: db}
}

// Device is the repository-layer representation of a registered device.
// The ID is the owner identity every session and chunk is addressed by.
type Device struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

func deviceKey(name string) []byte {
	return []byte("device:" + name)
}

// CreateDevice persists a new device and returns its generated ID.
// The name doubles as the lookup key, so registration is first-come.
func (r DeviceRepository) CreateDevice(name, hashedPassword string) (string, error) {
	device := Device{
		ID:           uuid.New().String(),
		Name:         name,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().Unix(),
	}
	data, err := json.Marshal(device)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		key := deviceKey(name)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrDeviceAlreadyExists
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return "", err
	}
	return device.ID, nil
}

func (r DeviceRepository) GetDeviceByName(name string) (Device, error) {
	var device Device
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(deviceKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &device)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return Device{}, errors.ErrInvalidCredentials
	}
	if err != nil {
		return Device{}, err
	}
	return device, nil
}
