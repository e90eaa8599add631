package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dnitsch/aws-role-cache/internal/rolecreds"
	"github.com/sirupsen/logrus"
	"github.com/werf/lockgate"
	"github.com/werf/lockgate/pkg/file_locker"
	"github.com/zalando/go-keyring"
)

var (
	ErrUnableToLoadAWSCred        = errors.New("unable to load AWS credential")
	ErrUnableToLoadDueToLock      = errors.New("cannot load secret due to lock error")
	ErrUnableToAcquireLock        = errors.New("cannot acquire lock")
	ErrUnmarshallingSecret        = errors.New("cannot unmarshal secret")
	ErrFailedToClearSecretStorage = errors.New("failed to clear secret storage on OS")
)

// SecretStore holds one AWS credential set per role in the OS keyring.
// Access is serialized across processes with a file lock so concurrent
// credential_process invocations do not trample each other.
type SecretStore struct {
	current       *rolecreds.AWSCredentials
	credJson      string
	keyring       Keyring
	roleArn       string
	lockDir       string
	locker        lockgate.Locker
	lockResource  string
	secretService string
	secretUser    string
}

// Keyring is the required OS secret backend surface.
type Keyring interface {
	Set(service, user, password string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

func (s *SecretStore) WithLocker(locker lockgate.Locker) *SecretStore {
	s.locker = locker
	return s
}

func (s *SecretStore) WithKeyring(keyring Keyring) *SecretStore {
	s.keyring = keyring
	return s
}

// keyRingImpl is the default keyring implementation
type keyRingImpl struct{}

func (k *keyRingImpl) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}
func (k *keyRingImpl) Get(service, user string) (string, error) {
	return keyring.Get(service, user)
}
func (k *keyRingImpl) Delete(service, user string) error {
	return keyring.Delete(service, user)
}

func NewSecretStore(roleArn, namer, baseDir, username string) (*SecretStore, error) {
	lockDir := baseDir + "/aws-role-cache-lock"
	locker, err := file_locker.NewFileLocker(lockDir)
	if err != nil {
		return nil, fmt.Errorf("cannot setup lock dir: %s", lockDir)
	}

	return &SecretStore{
		lockDir:       lockDir,
		locker:        locker,
		keyring:       &keyRingImpl{},
		lockResource:  namer,
		secretService: namer,
		roleArn:       roleArn,
		secretUser:    username,
	}, nil
}

func (s *SecretStore) ensureLock() (func(), error) {
	acquired, lock, err := s.locker.Acquire(s.lockResource, lockgate.AcquireOptions{Shared: false, Timeout: 1 * time.Minute})
	if err != nil {
		return nil, fmt.Errorf("%s, %w", err, ErrUnableToAcquireLock)
	}

	if !acquired {
		return nil, fmt.Errorf("%s, %w", err, ErrUnableToLoadDueToLock)
	}
	return func() {
		if err := s.locker.Release(lock); err != nil {
			logrus.Warnf("failed to release lock on %s: %s", s.lockResource, err)
		}
	}, nil
}

func (s *SecretStore) load() error {
	release, err := s.ensureLock()
	if err != nil {
		return err
	}
	defer release()

	creds := &rolecreds.AWSCredentials{}

	jsonStr, err := s.keyring.Get(s.secretService, s.secretUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := json.Unmarshal([]byte(jsonStr), &creds); err != nil {
		return fmt.Errorf("%s, %w", err, ErrUnmarshallingSecret)
	}

	if err := WriteIniSection(s.roleArn); err != nil {
		return err
	}

	s.current = creds
	s.credJson = jsonStr
	return nil
}

func (s *SecretStore) save() error {
	release, err := s.ensureLock()
	if err != nil {
		return err
	}
	defer release()

	if err := WriteIniSection(s.roleArn); err != nil {
		return err
	}

	return s.keyring.Set(s.secretService, s.secretUser, s.credJson)
}

// AWSCredential returns the stored credential set for the role, or nil
// when nothing has been stored yet.
func (s *SecretStore) AWSCredential() (*rolecreds.AWSCredentials, error) {
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("secret store: %s, %w", err, ErrUnableToLoadAWSCred)
	}

	if s.current == nil && s.credJson == "" {
		return nil, nil
	}

	logrus.Debugf("got credential from OS secret store for %s", s.roleArn)

	return s.current, nil
}

func (s *SecretStore) SaveAWSCredential(cred *rolecreds.AWSCredentials) error {
	s.current = cred
	jsonStr, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	s.credJson = string(jsonStr)
	return s.save()
}

func (s *SecretStore) Clear() error {
	return s.keyring.Delete(s.secretService, s.secretUser)
}

// ClearAll deletes the keyring entry of every role recorded in the ini
// registry.
func (s *SecretStore) ClearAll() error {
	srvSections, err := GetAllIniSections()
	if err != nil {
		return err
	}

	for _, v := range srvSections {
		if err := s.keyring.Delete(fmt.Sprintf("%s-%s", rolecreds.SELF_NAME, v), s.secretUser); err != nil {
			return fmt.Errorf("%s, %w", err, ErrFailedToClearSecretStorage)
		}
	}

	return nil
}
