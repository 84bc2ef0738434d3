package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Manager drives the trust ladder: rate-limited secret issuance, single-use
// verification with a birth date check, and stepwise elevation of an issued
// credential.
type Manager struct {
	store     TokenStore
	limiter   RateLimiter
	directory PatientDirectory
	sender    Sender
	issuer    *Issuer
	logger    *slog.Logger
	now       func() time.Time

	magicLinkTTL  time.Duration
	otpTTL        time.Duration
	maxAttempts   int
	lookupTimeout time.Duration
}

type Config struct {
	Store     TokenStore
	Limiter   RateLimiter
	Directory PatientDirectory
	Sender    Sender
	Issuer    *Issuer
	Logger    *slog.Logger
	Now       func() time.Time

	MagicLinkTTL  time.Duration
	OTPTTL        time.Duration
	MaxAttempts   int
	LookupTimeout time.Duration
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if cfg.Directory == nil {
		return nil, fmt.Errorf("patient directory is required")
	}
	if cfg.Sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if cfg.Issuer == nil {
		return nil, fmt.Errorf("issuer is required")
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:         cfg.Store,
		limiter:       cfg.Limiter,
		directory:     cfg.Directory,
		sender:        cfg.Sender,
		issuer:        cfg.Issuer,
		logger:        logger,
		now:           nowFn,
		magicLinkTTL:  cfg.MagicLinkTTL,
		otpTTL:        cfg.OTPTTL,
		maxAttempts:   cfg.MaxAttempts,
		lookupTimeout: cfg.LookupTimeout,
	}
	if m.magicLinkTTL <= 0 {
		m.magicLinkTTL = 15 * time.Minute
	}
	if m.otpTTL <= 0 {
		m.otpTTL = 10 * time.Minute
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = 5
	}
	if m.lookupTimeout <= 0 {
		m.lookupTimeout = 3 * time.Second
	}
	return m, nil
}

// InitiateResult is identical for known and unknown identifiers so a
// caller cannot probe which ones are registered.
type InitiateResult struct {
	ExpiresIn        time.Duration
	MaskedIdentifier string
}

// Session is the outcome of a successful token redemption.
type Session struct {
	JWT     string
	Claims  *Claims
	Patient *Patient
}

// Elevation is the outcome of a successful ladder step.
type Elevation struct {
	JWT    string
	Claims *Claims
}

// Initiate issues a secret over the requested channel. The response never
// reveals whether the identifier matched a patient: registry misses,
// lookup failures and delivery failures all collapse into the same result
// after quota has been spent.
func (m *Manager) Initiate(ctx context.Context, method Method, identifier string) (*InitiateResult, error) {
	const op = "core.Initiate"

	var ttl time.Duration
	switch method {
	case MethodMagicLink:
		if err := ValidateEmail(strings.TrimSpace(identifier)); err != nil {
			return nil, err
		}
		ttl = m.magicLinkTTL
	case MethodSMSOTP:
		if err := ValidatePhone(NormalizeIdentifier(identifier)); err != nil {
			return nil, err
		}
		ttl = m.otpTTL
	default:
		return nil, ErrInvalidMethod
	}

	id := NormalizeIdentifier(identifier)
	masked := MaskIdentifier(id)

	dec, err := m.limiter.Reserve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !dec.Allowed {
		return nil, &RateLimitError{RetryAfter: dec.RetryAfter}
	}

	res := &InitiateResult{ExpiresIn: ttl, MaskedIdentifier: masked}

	lctx, cancel := context.WithTimeout(ctx, m.lookupTimeout)
	defer cancel()
	var patient *Patient
	if method == MethodMagicLink {
		patient, err = m.directory.FindByEmail(lctx, id)
	} else {
		patient, err = m.directory.FindByPhone(lctx, id)
	}
	if err != nil {
		m.logger.Warn("patient lookup failed",
			slog.String("identifier", masked), slog.Any("error", err))
		return res, nil
	}
	if patient == nil {
		m.logger.Info("initiation for unknown identifier",
			slog.String("identifier", masked))
		return res, nil
	}

	if err := m.issueSecret(ctx, patient, method, "", ttl); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// VerifyToken redeems a delivered secret together with the patient's birth
// date and mints a level-2 credential. The token is burned on success and
// destroyed after maxAttempts failed birth date checks.
func (m *Manager) VerifyToken(ctx context.Context, rawSecret, birthDate string) (*Session, error) {
	const op = "core.VerifyToken"

	hash := HashSecret(strings.TrimSpace(rawSecret))
	token, err := m.store.Get(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := m.now()
	if !token.ExpiresAt.After(now) {
		_ = m.store.Delete(ctx, hash)
		return nil, ErrInvalidToken
	}
	if token.Used || token.Attempts >= m.maxAttempts {
		return nil, ErrInvalidToken
	}
	// Action-scoped OTPs are redeemed via ConfirmAction, never here.
	if token.Action != "" {
		return nil, ErrInvalidToken
	}

	lctx, cancel := context.WithTimeout(ctx, m.lookupTimeout)
	defer cancel()
	patient, err := m.directory.GetByID(lctx, token.PatientID)
	if err != nil || patient == nil {
		m.logger.Warn("patient gone at verification",
			slog.String("patient_id", token.PatientID), slog.Any("error", err))
		return nil, ErrInvalidToken
	}

	if patient.BirthDate != strings.TrimSpace(birthDate) {
		count, err := m.store.IncrementAttempts(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if count >= m.maxAttempts {
			_ = m.store.Delete(ctx, hash)
			return nil, ErrMaxAttempts
		}
		return nil, &BirthDateError{AttemptsRemaining: m.maxAttempts - count}
	}

	// MarkUsed is the atomic winner-takes-all step: a concurrent redeemer
	// that lost the race sees ErrUsed here.
	if err := m.store.MarkUsed(ctx, hash); err != nil {
		if errors.Is(err, ErrUsed) || errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	jwt, claims, err := m.issuer.IssueLevel2(patient.ID, token.Method)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.logger.Info("level 2 credential issued",
		slog.String("patient_id", patient.ID), slog.String("method", string(token.Method)))
	return &Session{JWT: jwt, Claims: claims, Patient: patient}, nil
}

// Elevate raises a level-2 credential to level 3 by checking one address
// factor. Only the first supplied factor, in postal code, city, street
// order, is evaluated; a mismatch names that factor and changes nothing.
func (m *Manager) Elevate(ctx context.Context, rawJWT string, factors AddressFactors) (*Elevation, error) {
	const op = "core.Elevate"

	claims, err := m.issuer.Verify(rawJWT)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	if claims.Level >= LevelElevated {
		return nil, &LevelError{Current: claims.Level}
	}
	if factors.Empty() {
		return nil, ErrNoFactor
	}

	lctx, cancel := context.WithTimeout(ctx, m.lookupTimeout)
	defer cancel()
	patient, err := m.directory.GetByID(lctx, claims.Subject)
	if err != nil || patient == nil {
		m.logger.Warn("patient gone at elevation",
			slog.String("patient_id", claims.Subject), slog.Any("error", err))
		return nil, ErrInvalidCredential
	}

	factor, ok := matchFactors(factors, patient.Address)
	if factor == "" {
		return nil, ErrNoFactor
	}
	if !ok {
		m.logger.Info("elevation factor mismatch",
			slog.String("patient_id", patient.ID), slog.String("factor", factor))
		return nil, &FactorError{Factor: factor}
	}

	jwt, elevated, err := m.issuer.Elevate(claims, LevelElevated, "address", "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.logger.Info("credential elevated",
		slog.String("patient_id", patient.ID), slog.Int("level", elevated.Level))
	return &Elevation{JWT: jwt, Claims: elevated}, nil
}

// RequestActionOTP starts the level 3 to 4 leg: an OTP scoped to one
// sensitive action, delivered to the phone on file. Rate limited per
// patient; a missing phone folds into the generic result like a registry
// miss on Initiate.
func (m *Manager) RequestActionOTP(ctx context.Context, rawJWT, action string) (*InitiateResult, error) {
	const op = "core.RequestActionOTP"

	claims, err := m.issuer.Verify(rawJWT)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	if claims.Level < LevelElevated {
		return nil, ErrInsufficientLevel
	}
	if claims.Level >= LevelConfirmed {
		return nil, &LevelError{Current: claims.Level}
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return nil, ErrInvalidAction
	}

	dec, err := m.limiter.Reserve(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !dec.Allowed {
		return nil, &RateLimitError{RetryAfter: dec.RetryAfter}
	}

	res := &InitiateResult{ExpiresIn: m.otpTTL}

	lctx, cancel := context.WithTimeout(ctx, m.lookupTimeout)
	defer cancel()
	patient, err := m.directory.GetByID(lctx, claims.Subject)
	if err != nil || patient == nil || patient.Phone == "" {
		m.logger.Warn("no deliverable phone for action otp",
			slog.String("patient_id", claims.Subject), slog.Any("error", err))
		return res, nil
	}
	res.MaskedIdentifier = MaskIdentifier(NormalizeIdentifier(patient.Phone))

	if err := m.issueSecret(ctx, patient, MethodSMSOTP, action, m.otpTTL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ConfirmAction redeems an action OTP against a level-3 credential and
// mints the level-4 credential authorizing that single action.
func (m *Manager) ConfirmAction(ctx context.Context, rawJWT, code, action string) (*Elevation, error) {
	const op = "core.ConfirmAction"

	claims, err := m.issuer.Verify(rawJWT)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	if claims.Level < LevelElevated {
		return nil, ErrInsufficientLevel
	}
	if claims.Level >= LevelConfirmed {
		return nil, &LevelError{Current: claims.Level}
	}

	hash := HashSecret(strings.TrimSpace(code))
	token, err := m.store.Get(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !token.ExpiresAt.After(m.now()) {
		_ = m.store.Delete(ctx, hash)
		return nil, ErrInvalidToken
	}
	if token.Used {
		return nil, ErrInvalidToken
	}
	if token.PatientID != claims.Subject || token.Method != MethodSMSOTP || token.Action != strings.TrimSpace(action) {
		return nil, ErrInvalidToken
	}

	if err := m.store.MarkUsed(ctx, hash); err != nil {
		if errors.Is(err, ErrUsed) || errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	jwt, elevated, err := m.issuer.Elevate(claims, LevelConfirmed, string(MethodSMSOTP), token.Action)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.logger.Info("action confirmed",
		slog.String("patient_id", claims.Subject), slog.String("action", token.Action))
	return &Elevation{JWT: jwt, Claims: elevated}, nil
}

// VerifyCredential validates a raw credential. Handlers use it to gate
// endpoints; level checks stay with the caller.
func (m *Manager) VerifyCredential(rawJWT string) (*Claims, error) {
	return m.issuer.Verify(rawJWT)
}

// SweepExpired removes tokens whose expiry has passed. Safe to run
// concurrently with normal traffic.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	return m.store.SweepExpired(ctx, m.now())
}

func (m *Manager) issueSecret(ctx context.Context, patient *Patient, method Method, action string, ttl time.Duration) error {
	var secret string
	var err error
	if method == MethodMagicLink {
		secret, err = NewMagicLinkToken()
	} else {
		secret, err = NewSMSOTP()
	}
	if err != nil {
		return err
	}

	now := m.now()
	token := AuthToken{
		TokenHash: HashSecret(secret),
		PatientID: patient.ID,
		Method:    method,
		Action:    action,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := m.store.Save(ctx, token, ttl); err != nil {
		return err
	}

	dctx, cancel := context.WithTimeout(ctx, m.lookupTimeout)
	defer cancel()
	if method == MethodMagicLink {
		err = m.sender.SendMagicLink(dctx, patient.Email, secret)
	} else {
		err = m.sender.SendOTP(dctx, patient.Phone, secret)
	}
	if err != nil {
		// Folded into the generic success response; the token stays
		// issued and simply expires unredeemed.
		m.logger.Warn("secret delivery failed",
			slog.String("patient_id", patient.ID), slog.Any("error", err))
	}
	return nil
}
