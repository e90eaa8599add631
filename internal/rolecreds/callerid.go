package rolecreds

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

var ErrUnableToValidate = errors.New("unable to validate credential")

type CallerIdentityApi interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type CallerIdentity struct {
	Account string
	Arn     string
	UserId  string
}

// WhoAmI resolves the identity behind the supplied STS client.
func WhoAmI(ctx context.Context, svc CallerIdentityApi) (*CallerIdentity, error) {
	resp, err := svc.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("%s, %w", err, ErrUnableToValidate)
	}
	return &CallerIdentity{
		Account: aws.ToString(resp.Account),
		Arn:     aws.ToString(resp.Arn),
		UserId:  aws.ToString(resp.UserId),
	}, nil
}

// IsValid reports whether a previously stored credential can still be
// served: it must be present, have more than reloadBeforeSeconds left
// before expiry and still be accepted by STS. svc is expected to be
// configured with the credential under test.
func IsValid(ctx context.Context, cred *AWSCredentials, reloadBeforeSeconds int, svc CallerIdentityApi) (bool, error) {
	if cred == nil {
		return false, nil
	}
	if ReloadBeforeExpiry(cred.Expires, reloadBeforeSeconds) {
		return false, nil
	}
	if _, err := svc.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ExpiredToken" {
			return false, nil
		}
		return false, fmt.Errorf("%s, %w", err, ErrUnableToValidate)
	}
	return true, nil
}
