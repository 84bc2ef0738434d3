package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/portacare/stepauth/core"
)

// captureSender keeps the last issued secret so the walkthrough can redeem
// it the way a patient would from their inbox or phone.
type captureSender struct {
	lastSecret string
}

func (s *captureSender) SendMagicLink(_ context.Context, _, rawToken string) error {
	s.lastSecret = rawToken
	return nil
}

func (s *captureSender) SendOTP(_ context.Context, _, code string) error {
	s.lastSecret = code
	return nil
}

func main() {
	directory := core.NewMemoryDirectory()
	anna := directory.Add(core.Patient{
		Name:      "Anna Schmidt",
		Email:     "anna@example.de",
		Phone:     "+4915112345543",
		BirthDate: "1987-04-12",
		Address: core.Address{
			PostalCode: "10115",
			City:       "Berlin",
			Lines:      []string{"Invalidenstr. 44"},
		},
	})

	sender := &captureSender{}
	manager, err := core.NewManagerWithOptions(core.Options{
		Directory: directory,
		Sender:    sender,
		JWTSecret: "example-secret-12345",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		log.Fatalf("init manager: %v", err)
	}

	ctx := context.Background()

	res, err := manager.Initiate(ctx, core.MethodMagicLink, anna.Email)
	if err != nil {
		log.Fatalf("initiate: %v", err)
	}
	fmt.Printf("Magic link issued to %s, valid %s\n", res.MaskedIdentifier, res.ExpiresIn)

	session, err := manager.VerifyToken(ctx, sender.lastSecret, anna.BirthDate)
	if err != nil {
		log.Fatalf("verify token: %v", err)
	}
	fmt.Printf("Level %d credential for %s, expires %s\n",
		session.Claims.Level, session.Patient.Name,
		session.Claims.ExpiresAt.Format(time.RFC3339))

	if _, err := manager.VerifyToken(ctx, sender.lastSecret, anna.BirthDate); err != nil {
		fmt.Printf("Replaying the magic link fails as expected: %v\n", err)
	}

	elevated, err := manager.Elevate(ctx, session.JWT, core.AddressFactors{PostalCode: "10115"})
	if err != nil {
		log.Fatalf("elevate: %v", err)
	}
	fmt.Printf("Level %d after postal code check, expiry unchanged: %v\n",
		elevated.Claims.Level,
		elevated.Claims.ExpiresAt.Equal(session.Claims.ExpiresAt.Time))

	if _, err := manager.RequestActionOTP(ctx, elevated.JWT, "prescription_refill"); err != nil {
		log.Fatalf("request action otp: %v", err)
	}
	confirmed, err := manager.ConfirmAction(ctx, elevated.JWT, sender.lastSecret, "prescription_refill")
	if err != nil {
		log.Fatalf("confirm action: %v", err)
	}
	fmt.Printf("Level %d credential scoped to %q\n",
		confirmed.Claims.Level, confirmed.Claims.Action)
}
