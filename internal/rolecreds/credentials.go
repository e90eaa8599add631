package rolecreds

import "time"

// AWSCredentials is one set of temporary credentials as minted by STS.
// Immutable once produced - a refresh swaps the whole instance.
// The json tags follow the credential_process payload contract.
type AWSCredentials struct {
	Version         int
	AWSAccessKey    string    `json:"AccessKeyId"`
	AWSSecretKey    string    `json:"SecretAccessKey"`
	AWSSessionToken string    `json:"SessionToken"`
	PrincipalARN    string    `json:"-"`
	Expires         time.Time `json:"Expiration"`
}

// ReloadBeforeExpiry returns true if the time to expiry is
// reloadBeforeSeconds or less, i.e. the credential needs recycling
// before it can be handed out again.
func ReloadBeforeExpiry(expiry time.Time, reloadBeforeSeconds int) bool {
	return reloadBeforeExpiry(expiry, reloadBeforeSeconds, time.Now())
}

func reloadBeforeExpiry(expiry time.Time, reloadBeforeSeconds int, now time.Time) bool {
	diff := expiry.Sub(now)
	// exactly on the boundary counts as stale - the credential still has
	// to outlive the gap between this check and its first use
	return diff.Seconds() <= float64(reloadBeforeSeconds)
}
