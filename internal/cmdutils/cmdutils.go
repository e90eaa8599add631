package cmdutils

import (
	"context"
	"errors"
	"fmt"

	"github.com/dnitsch/aws-role-cache/internal/credstore"
	"github.com/dnitsch/aws-role-cache/internal/rolecreds"
)

var (
	ErrMissingArg       = errors.New("missing arg")
	ErrUnableToValidate = errors.New("unable to validate token")
)

type SecretStorageImpl interface {
	AWSCredential() (*rolecreds.AWSCredentials, error)
	Clear() error
	ClearAll() error
	SaveAWSCredential(cred *rolecreds.AWSCredentials) error
}

// CredentialProvider serves a valid credential set, refreshing through STS
// when required.
type CredentialProvider interface {
	Credentials(ctx context.Context) (*rolecreds.AWSCredentials, error)
}

// CallerIdentityFn builds an STS client configured with cred, used to
// live-verify a stored credential before reusing it.
type CallerIdentityFn func(cred *rolecreds.AWSCredentials) rolecreds.CallerIdentityApi

type CredsConfig struct {
	Output           credstore.OutputConfig
	ReloadBeforeTime int
}

// GetRoleCreds emits a usable credential set for the configured role:
// the stored credential is reused while it is fresh and accepted by STS,
// anything else goes through the provider and the result is persisted.
func GetRoleCreds(ctx context.Context, provider CredentialProvider, checkSvc CallerIdentityFn, secretStore SecretStorageImpl, conf CredsConfig) error {
	if conf.Output.CfgSectionName == "" && conf.Output.StoreInProfile {
		return fmt.Errorf("cfg-section name must be provided if store-profile is enabled, %w", ErrMissingArg)
	}

	// Try to reuse stored credential in secret
	storedCreds, err := secretStore.AWSCredential()
	if err != nil {
		return err
	}

	credsValid := false
	if storedCreds != nil {
		credsValid, err = rolecreds.IsValid(ctx, storedCreds, conf.ReloadBeforeTime, checkSvc(storedCreds))
		if err != nil {
			return fmt.Errorf("failed to validate: %s, %w", err, ErrUnableToValidate)
		}
	}

	if !credsValid {
		return refreshRoleCreds(ctx, provider, secretStore, conf)
	}

	return credstore.SetCredentials(storedCreds, conf.Output)
}

func refreshRoleCreds(ctx context.Context, provider CredentialProvider, secretStore SecretStorageImpl, conf CredsConfig) error {
	awsCreds, err := provider.Credentials(ctx)
	if err != nil {
		return err
	}
	return completeCredStorage(secretStore, awsCreds, conf)
}

func completeCredStorage(secretStore SecretStorageImpl, awsCreds *rolecreds.AWSCredentials, conf CredsConfig) error {
	stored := *awsCreds
	stored.Version = 1
	if err := secretStore.SaveAWSCredential(&stored); err != nil {
		return err
	}
	return credstore.SetCredentials(&stored, conf.Output)
}
