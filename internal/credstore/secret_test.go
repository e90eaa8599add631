package credstore_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dnitsch/aws-role-cache/internal/credstore"
	"github.com/dnitsch/aws-role-cache/internal/rolecreds"
	"github.com/werf/lockgate"
	"github.com/zalando/go-keyring"
)

var roleTest string = "arn:aws:iam::111122342343:role/DevAdmin"
var keyTest string = "arn_aws_iam__111122342343_role____DevAdmin"

type mockKeyring struct {
	store  map[string]string
	getErr error
	setErr error
	delErr error
}

func newMockKeyring() *mockKeyring {
	return &mockKeyring{store: map[string]string{}}
}

func (m *mockKeyring) Set(service, user, password string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.store[service+"/"+user] = password
	return nil
}

func (m *mockKeyring) Get(service, user string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.store[service+"/"+user]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}

func (m *mockKeyring) Delete(service, user string) error {
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.store, service+"/"+user)
	return nil
}

type mockLocker struct {
	acquired   bool
	acquireErr error
}

func (l *mockLocker) Acquire(lockName string, opts lockgate.AcquireOptions) (bool, lockgate.LockHandle, error) {
	return l.acquired, lockgate.LockHandle{LockName: lockName}, l.acquireErr
}

func (l *mockLocker) Release(lock lockgate.LockHandle) error {
	return nil
}

func testStore(t *testing.T, kr credstore.Keyring, locker lockgate.Locker) *credstore.SecretStore {
	t.Helper()
	s, err := credstore.NewSecretStore(roleTest,
		fmt.Sprintf("%s-%s", rolecreds.SELF_NAME, keyTest), t.TempDir(), "some-user")
	if err != nil {
		t.Fatalf("got %s, wanted <nil>", err)
	}
	return s.WithKeyring(kr).WithLocker(locker)
}

func Test_SecretStore_save_and_load_roundtrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	kr := newMockKeyring()
	locker := &mockLocker{acquired: true}

	cred := &rolecreds.AWSCredentials{
		Version:         1,
		AWSAccessKey:    "3212321",
		AWSSecretKey:    "23fsd2332",
		AWSSessionToken: "LONG_TOKEN",
		Expires:         time.Now().Add(15 * time.Minute).UTC(),
	}

	if err := testStore(t, kr, locker).SaveAWSCredential(cred); err != nil {
		t.Fatalf("got %s, wanted <nil>", err)
	}

	got, err := testStore(t, kr, locker).AWSCredential()
	if err != nil {
		t.Fatalf("got %s, wanted <nil>", err)
	}
	if got == nil {
		t.Fatal("got <nil>, wanted a stored credential")
	}
	if got.AWSAccessKey != cred.AWSAccessKey || got.AWSSessionToken != cred.AWSSessionToken {
		t.Errorf("wanted %v, got %v", cred, got)
	}
	if !got.Expires.Equal(cred.Expires) {
		t.Errorf("wanted expiry %s, got %s", cred.Expires, got.Expires)
	}
}

func Test_SecretStore_load_with(t *testing.T) {
	ttests := map[string]struct {
		keyring   func() *mockKeyring
		locker    *mockLocker
		expectNil bool
		expectErr bool
	}{
		"empty store returns nil credential": {
			keyring:   newMockKeyring,
			locker:    &mockLocker{acquired: true},
			expectNil: true,
		},
		"lock acquire error": {
			keyring:   newMockKeyring,
			locker:    &mockLocker{acquireErr: fmt.Errorf("flock error")},
			expectErr: true,
		},
		"lock not acquired": {
			keyring:   newMockKeyring,
			locker:    &mockLocker{acquired: false},
			expectErr: true,
		},
		"keyring backend error": {
			keyring: func() *mockKeyring {
				kr := newMockKeyring()
				kr.getErr = fmt.Errorf("dbus unavailable")
				return kr
			},
			locker:    &mockLocker{acquired: true},
			expectErr: true,
		},
		"corrupt secret payload": {
			keyring: func() *mockKeyring {
				kr := newMockKeyring()
				kr.store[fmt.Sprintf("%s-%s/some-user", rolecreds.SELF_NAME, keyTest)] = `{"AccessKeyId":`
				return kr
			},
			locker:    &mockLocker{acquired: true},
			expectErr: true,
		},
	}
	for name, tt := range ttests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())

			got, err := testStore(t, tt.keyring(), tt.locker).AWSCredential()

			if tt.expectErr {
				if err == nil {
					t.Errorf("got <nil>, wanted %s", credstore.ErrUnableToLoadAWSCred)
					return
				}
				if !errors.Is(err, credstore.ErrUnableToLoadAWSCred) {
					t.Errorf("got %s, wanted %s", err, credstore.ErrUnableToLoadAWSCred)
				}
				return
			}

			if err != nil {
				t.Fatalf("got %s, wanted <nil>", err)
			}
			if tt.expectNil && got != nil {
				t.Errorf("got %v, wanted <nil>", got)
			}
		})
	}
}

func Test_SecretStore_ClearAll_with(t *testing.T) {
	ttests := map[string]struct {
		keyring   func() *mockKeyring
		expectErr bool
		errTyp    error
	}{
		"removes every registered role entry": {
			keyring: func() *mockKeyring {
				kr := newMockKeyring()
				kr.store[fmt.Sprintf("%s-%s/some-user", rolecreds.SELF_NAME, keyTest)] = `{}`
				return kr
			},
		},
		"surfaces a backend delete failure": {
			keyring: func() *mockKeyring {
				kr := newMockKeyring()
				kr.delErr = fmt.Errorf("keychain locked")
				return kr
			},
			expectErr: true,
			errTyp:    credstore.ErrFailedToClearSecretStorage,
		},
	}
	for name, tt := range ttests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())

			if err := credstore.WriteIniSection(roleTest); err != nil {
				t.Fatalf("got %s, wanted <nil>", err)
			}

			kr := tt.keyring()
			err := testStore(t, kr, &mockLocker{acquired: true}).ClearAll()

			if tt.expectErr {
				if err == nil {
					t.Errorf("got <nil>, wanted %s", tt.errTyp)
					return
				}
				if !errors.Is(err, tt.errTyp) {
					t.Errorf("got %s, wanted %s", err, tt.errTyp)
				}
				return
			}

			if err != nil {
				t.Fatalf("got %s, wanted <nil>", err)
			}
			if len(kr.store) != 0 {
				t.Errorf("wanted an empty keyring, got %v", kr.store)
			}
		})
	}
}

func TestConvertRoleToKey(t *testing.T) {
	got := credstore.RoleKeyConverter(roleTest)
	want := keyTest
	if got != want {
		t.Errorf("Wanted: %s, Got: %s", want, got)
	}
}

func TestConvertKeyToRole(t *testing.T) {
	got := credstore.KeyRoleConverter(keyTest)
	want := roleTest
	if got != want {
		t.Errorf("Wanted: %s, Got: %s", want, got)
	}
}
