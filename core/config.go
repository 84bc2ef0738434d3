package core

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures NewManagerWithOptions, which picks memory or Redis
// backends for the token store and rate limiter. Directory and Sender are
// the two external collaborators and must always be supplied.
type Options struct {
	Directory PatientDirectory
	Sender    Sender
	JWTSecret string

	RedisAddr      string
	RedisKeyPrefix string

	CredentialTTL time.Duration
	MagicLinkTTL  time.Duration
	OTPTTL        time.Duration
	RateLimit     int
	RateWindow    time.Duration
	Logger        *slog.Logger
}

func NewManagerWithOptions(opts Options) (*Manager, error) {
	rateLimit := opts.RateLimit
	if rateLimit <= 0 {
		rateLimit = 3
	}
	rateWindow := opts.RateWindow
	if rateWindow <= 0 {
		rateWindow = 1 * time.Hour
	}

	var store TokenStore
	var limiter RateLimiter
	if opts.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr: opts.RedisAddr,
		})
		keyPrefix := opts.RedisKeyPrefix
		if keyPrefix == "" {
			keyPrefix = "stepauth:"
		}
		store = NewRedisStore(client, keyPrefix+"token:")
		limiter = NewRedisRateLimiter(client, keyPrefix+"rate:", rateLimit, rateWindow)
	} else {
		store = NewMemoryStore()
		limiter = NewMemoryRateLimiter(rateLimit, rateWindow)
	}

	issuer, err := NewIssuer(opts.JWTSecret, opts.CredentialTTL)
	if err != nil {
		return nil, err
	}

	return NewManager(Config{
		Store:        store,
		Limiter:      limiter,
		Directory:    opts.Directory,
		Sender:       opts.Sender,
		Issuer:       issuer,
		Logger:       opts.Logger,
		MagicLinkTTL: opts.MagicLinkTTL,
		OTPTTL:       opts.OTPTTL,
	})
}
