package rolecreds

import (
	"errors"
	"fmt"
)

const SELF_NAME = "aws-role-cache"

var (
	ErrMissingRole         = errors.New("missing role arn")
	ErrInvalidReloadBefore = errors.New("invalid reload-before value")
)

// Config is the identity a Provider assumes. Set once at construction,
// never mutated afterwards.
type Config struct {
	// RoleArn of the role to assume
	RoleArn string
	// ExternalId is passed through to the AssumeRole call when set
	ExternalId string
	// SourceIdentity is passed through to the AssumeRole call when set
	SourceIdentity string
	// SessionName for the role session, a unique one is generated when empty
	SessionName string
	// Duration of the requested session in seconds. 0 defers to the STS default
	Duration int
	// ReloadBeforeTime is the minimum remaining lifetime in seconds a cached
	// credential must still have to be served without a refresh
	ReloadBeforeTime int
}

func (c Config) validate() error {
	if c.RoleArn == "" {
		return fmt.Errorf("role is required, %w", ErrMissingRole)
	}
	if c.ReloadBeforeTime <= 0 {
		return fmt.Errorf("reload-before: %v must be a positive number of seconds, %w", c.ReloadBeforeTime, ErrInvalidReloadBefore)
	}
	if c.Duration != 0 && c.ReloadBeforeTime >= c.Duration {
		return fmt.Errorf("reload-before: %v must be less than duration: %v, %w", c.ReloadBeforeTime, c.Duration, ErrInvalidReloadBefore)
	}
	return nil
}
