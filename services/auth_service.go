package services

import (
	"fmt"

	"filedrop/auth"
	"filedrop/errors"
	"filedrop/repositories"
)

type IAuthService interface {
	Login(deviceName, password string) (Token, error)
	Register(deviceName, password string) (Token, error)
}

type AuthService struct {
	devices repositories.IDeviceRepository
	tokens  *auth.TokenManager
}

type Token string

func NewAuthService(devices repositories.IDeviceRepository, tokens *auth.TokenManager) IAuthService {
	return &AuthService{devices: devices, tokens: tokens}
}

func (s *AuthService) Register(deviceName, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		DeviceName: deviceName,
		Password:   password,
	}

	// 1. Validate business rules before any expensive cryptographic work.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// 2. Hash the password using Argon2id.
	// Done here so the repository never sees a plain password.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the device with the generated hash.
	deviceID, err := s.devices.CreateDevice(deviceName, hashedPassword)
	if err != nil {
		return "", err // Propagates ErrDeviceAlreadyExists when the name is taken.
	}

	// 4. Issue the initial bearer token.
	token, err := s.tokens.Generate(deviceID)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(deviceName, password string) (Token, error) {
	// 1. Retrieve the device from storage.
	device, err := s.devices.GetDeviceByName(deviceName)
	if err != nil {
		// Generic error to prevent device-name enumeration.
		return "", errors.ErrInvalidCredentials
	}

	// 2. Compare the provided password with the stored hash.
	match, err := auth.ComparePassword(password, device.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	// 3. Issue the JWT.
	token, err := s.tokens.Generate(device.ID)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
