package config

import (
	"errors"
	"fmt"
	"log"
)

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

// Validate reports every setting the HTTP server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing required env DATABASE_URL"))
	}
	if len(c.JWTSecret) == 0 {
		errs = append(errs, errors.New("missing required env JWT_SECRET"))
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("env SERVER_PORT out of range: %d", c.ServerPort))
	}
	if c.JWTTTLMinutes <= 0 {
		errs = append(errs, fmt.Errorf("env JWT_TTL_MINUTES must be positive, got %d", c.JWTTTLMinutes))
	}
	if c.CancellationBlockThreshold <= 0 {
		errs = append(errs, fmt.Errorf("env CANCELLATION_BLOCK_THRESHOLD must be positive, got %d", c.CancellationBlockThreshold))
	}
	return errors.Join(errs...)
}
