package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"filedrop/errors"
)

type credentialsRequest struct {
	DeviceName string `json:"device_name"`
	Password   string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	creds, err := decodeCredentials(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	token, err := s.authSvc.Register(creds.DeviceName, creds.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: string(token), TokenType: "bearer"})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	creds, err := decodeCredentials(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	token, err := s.authSvc.Login(creds.DeviceName, creds.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tokenResponse{AccessToken: string(token), TokenType: "bearer"})
}

func decodeCredentials(r *http.Request) (credentialsRequest, error) {
	var creds credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		return credentialsRequest{}, fmt.Errorf("%w: request body is not valid JSON", errors.ErrInvalidCredentials)
	}
	if creds.DeviceName == "" || creds.Password == "" {
		return credentialsRequest{}, fmt.Errorf("%w: device_name and password are required", errors.ErrInvalidCredentials)
	}
	return creds, nil
}
