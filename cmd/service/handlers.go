package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/portacare/stepauth/core"
)

type server struct {
	manager *core.Manager
	logger  *slog.Logger
}

type initiateRequest struct {
	Method     string `json:"method"`
	Identifier string `json:"identifier"`
}

type initiateResponse struct {
	Success          bool   `json:"success"`
	ExpiresIn        int64  `json:"expiresIn"`
	MaskedIdentifier string `json:"maskedIdentifier,omitempty"`
}

func (s *server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identifier == "" {
		s.writeError(w, http.StatusBadRequest, "validation_failed", nil)
		return
	}

	res, err := s.manager.Initiate(r.Context(), core.Method(req.Method), req.Identifier)
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, initiateResponse{
		Success:          true,
		ExpiresIn:        int64(res.ExpiresIn.Seconds()),
		MaskedIdentifier: res.MaskedIdentifier,
	})
}

type verifyTokenRequest struct {
	Token     string `json:"token"`
	BirthDate string `json:"birthDate"`
}

type verifyTokenResponse struct {
	JWT       string         `json:"jwt"`
	Level     int            `json:"level"`
	ExpiresAt int64          `json:"expiresAt"`
	Patient   patientSummary `json:"patient"`
}

type patientSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *server) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req verifyTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		s.writeError(w, http.StatusBadRequest, "validation_failed", nil)
		return
	}
	if _, err := time.Parse("2006-01-02", req.BirthDate); err != nil {
		s.writeError(w, http.StatusBadRequest, "validation_failed", nil)
		return
	}

	session, err := s.manager.VerifyToken(r.Context(), req.Token, req.BirthDate)
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyTokenResponse{
		JWT:       session.JWT,
		Level:     session.Claims.Level,
		ExpiresAt: session.Claims.ExpiresAt.Unix(),
		Patient: patientSummary{
			ID:   session.Patient.ID,
			Name: session.Patient.Name,
		},
	})
}

type elevationResponse struct {
	JWT       string `json:"jwt"`
	Level     int    `json:"level"`
	ExpiresAt int64  `json:"expiresAt"`
}

func (s *server) handleElevate(w http.ResponseWriter, r *http.Request) {
	raw := core.ExtractBearer(r.Header.Get("Authorization"))
	if raw == "" {
		s.writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var factors core.AddressFactors
	if err := json.NewDecoder(r.Body).Decode(&factors); err != nil {
		s.writeError(w, http.StatusBadRequest, "validation_failed", nil)
		return
	}

	elevation, err := s.manager.Elevate(r.Context(), raw, factors)
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, elevationResponse{
		JWT:       elevation.JWT,
		Level:     elevation.Claims.Level,
		ExpiresAt: elevation.Claims.ExpiresAt.Unix(),
	})
}

type requestActionRequest struct {
	Action string `json:"action"`
}

func (s *server) handleRequestAction(w http.ResponseWriter, r *http.Request) {
	raw := core.ExtractBearer(r.Header.Get("Authorization"))
	if raw == "" {
		s.writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req requestActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "validation_failed", nil)
		return
	}

	res, err := s.manager.RequestActionOTP(r.Context(), raw, req.Action)
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, initiateResponse{
		Success:          true,
		ExpiresIn:        int64(res.ExpiresIn.Seconds()),
		MaskedIdentifier: res.MaskedIdentifier,
	})
}

type confirmActionRequest struct {
	OTP    string `json:"otp"`
	Action string `json:"action"`
}

func (s *server) handleConfirmAction(w http.ResponseWriter, r *http.Request) {
	raw := core.ExtractBearer(r.Header.Get("Authorization"))
	if raw == "" {
		s.writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var req confirmActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OTP == "" {
		s.writeError(w, http.StatusBadRequest, "validation_failed", nil)
		return
	}

	elevation, err := s.manager.ConfirmAction(r.Context(), raw, req.OTP, req.Action)
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, elevationResponse{
		JWT:       elevation.JWT,
		Level:     elevation.Claims.Level,
		ExpiresAt: elevation.Claims.ExpiresAt.Unix(),
	})
}

func (s *server) writeManagerError(w http.ResponseWriter, err error) {
	var rateErr *core.RateLimitError
	var birthErr *core.BirthDateError
	var factorErr *core.FactorError
	var levelErr *core.LevelError

	switch {
	case errors.Is(err, core.ErrInvalidIdentifier), errors.Is(err, core.ErrInvalidMethod),
		errors.Is(err, core.ErrInvalidAction), errors.Is(err, core.ErrNoFactor):
		s.writeError(w, http.StatusBadRequest, "validation_failed", nil)
	case errors.As(err, &rateErr):
		s.writeError(w, http.StatusTooManyRequests, "rate_limited", map[string]any{
			"retryAfterSeconds": int64(rateErr.RetryAfter.Seconds()),
		})
	case errors.Is(err, core.ErrInvalidToken), errors.Is(err, core.ErrInvalidCredential):
		s.writeError(w, http.StatusUnauthorized, "invalid_token", nil)
	case errors.Is(err, core.ErrInsufficientLevel):
		s.writeError(w, http.StatusUnauthorized, "unauthorized", nil)
	case errors.Is(err, core.ErrMaxAttempts):
		s.writeError(w, http.StatusUnauthorized, "max_attempts", nil)
	case errors.As(err, &birthErr):
		s.writeError(w, http.StatusUnauthorized, "invalid_birthdate", map[string]any{
			"attemptsRemaining": birthErr.AttemptsRemaining,
		})
	case errors.As(err, &factorErr):
		s.writeError(w, http.StatusUnauthorized, "invalid_factor", map[string]any{
			"failedFactor": factorErr.Factor,
		})
	case errors.As(err, &levelErr):
		s.writeError(w, http.StatusBadRequest, "already_at_level", map[string]any{
			"currentLevel": levelErr.Current,
		})
	default:
		s.logger.Error("request failed", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "internal", nil)
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, code string, extra map[string]any) {
	body := map[string]any{"error": code}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
