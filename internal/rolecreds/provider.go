package rolecreds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var (
	ErrUnableAssume  = errors.New("unable to assume")
	ErrNoCredentials = errors.New("assume role returned no credentials")
)

// AssumeRoleApi is the subset of the STS client used to mint credentials.
type AssumeRoleApi interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Provider caches one credential set for a fixed role configuration and
// refreshes it lazily through STS.
//
// Safe for concurrent use. At most one AssumeRole call is in flight at a
// time - every caller that misses the cache while a refresh is running
// waits for that refresh and receives its outcome, successful or not.
type Provider struct {
	conf Config
	svc  AssumeRoleApi
	now  func() time.Time
	log  logrus.FieldLogger

	group singleflight.Group

	mu      sync.RWMutex
	current *AWSCredentials
}

func New(conf Config, svc AssumeRoleApi) (*Provider, error) {
	if err := conf.validate(); err != nil {
		return nil, err
	}
	if conf.SessionName == "" {
		conf.SessionName = fmt.Sprintf("%s-%s", SELF_NAME, uuid.NewString())
	}
	return &Provider{
		conf: conf,
		svc:  svc,
		now:  time.Now,
		log:  logrus.StandardLogger(),
	}, nil
}

// WithClock overrides the time source used for freshness decisions.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

func (p *Provider) WithLogger(log logrus.FieldLogger) *Provider {
	p.log = log
	return p
}

// Credentials returns the cached credential set while it still has more
// than ReloadBeforeTime seconds left, refreshing it via STS otherwise.
// All callers sharing a refresh receive the same instance or the same error.
func (p *Provider) Credentials(ctx context.Context) (*AWSCredentials, error) {
	if creds := p.stored(); creds != nil {
		p.log.Debugf("returning cached credentials for %s", p.conf.RoleArn)
		return creds, nil
	}
	p.log.Debugf("no valid credentials in cache for %s, refreshing", p.conf.RoleArn)
	return p.refresh(ctx)
}

// Retrieve implements aws.CredentialsProvider so the cache can be plugged
// straight into an aws.Config for any service client.
func (p *Provider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	creds, err := p.Credentials(ctx)
	if err != nil {
		return aws.Credentials{}, err
	}
	return aws.Credentials{
		AccessKeyID:     creds.AWSAccessKey,
		SecretAccessKey: creds.AWSSecretKey,
		SessionToken:    creds.AWSSessionToken,
		Source:          SELF_NAME,
		CanExpire:       true,
		Expires:         creds.Expires,
	}, nil
}

// stored returns the cached credential set only while its expiry is
// strictly more than ReloadBeforeTime seconds away. Now is sampled once
// per call so a single decision never sees two clocks.
func (p *Provider) stored() *AWSCredentials {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current != nil && !reloadBeforeExpiry(p.current.Expires, p.conf.ReloadBeforeTime, p.now()) {
		return p.current
	}
	return nil
}

// refresh collapses concurrent callers onto a single AssumeRole call. A
// waiter whose context ends gets its context error back, the call itself
// carries on so the remaining waiters still get a result.
func (p *Provider) refresh(ctx context.Context) (*AWSCredentials, error) {
	res := p.group.DoChan(p.conf.RoleArn, func() (interface{}, error) {
		// a racing caller may have finished a refresh between our
		// freshness check and winning this flight
		if creds := p.stored(); creds != nil {
			return creds, nil
		}
		return p.assume(context.WithoutCancel(ctx))
	})

	select {
	case r := <-res:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*AWSCredentials), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Provider) assume(ctx context.Context) (*AWSCredentials, error) {
	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(p.conf.RoleArn),
		RoleSessionName: aws.String(p.conf.SessionName),
	}
	if p.conf.ExternalId != "" {
		input.ExternalId = aws.String(p.conf.ExternalId)
	}
	if p.conf.SourceIdentity != "" {
		input.SourceIdentity = aws.String(p.conf.SourceIdentity)
	}
	if p.conf.Duration != 0 {
		input.DurationSeconds = aws.Int32(int32(p.conf.Duration))
	}

	resp, err := p.svc.AssumeRole(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve STS credentials for %s: %s, %w", p.conf.RoleArn, err.Error(), ErrUnableAssume)
	}
	if resp.Credentials == nil || resp.Credentials.Expiration == nil {
		return nil, fmt.Errorf("%s, %w", p.conf.RoleArn, ErrNoCredentials)
	}

	creds := &AWSCredentials{
		AWSAccessKey:    aws.ToString(resp.Credentials.AccessKeyId),
		AWSSecretKey:    aws.ToString(resp.Credentials.SecretAccessKey),
		AWSSessionToken: aws.ToString(resp.Credentials.SessionToken),
		Expires:         aws.ToTime(resp.Credentials.Expiration),
	}
	if resp.AssumedRoleUser != nil {
		creds.PrincipalARN = aws.ToString(resp.AssumedRoleUser.Arn)
	}

	p.mu.Lock()
	p.current = creds
	p.mu.Unlock()

	p.log.Debugf("assumed %s, session valid until %s", p.conf.RoleArn, creds.Expires)

	return creds, nil
}
