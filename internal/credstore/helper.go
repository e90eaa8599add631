package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/dnitsch/aws-role-cache/internal/rolecreds"
	ini "gopkg.in/ini.v1"
)

const INI_CONF_SECTION = "role"

var (
	ErrUnableToRetrieveSections = errors.New("unable to retrieve sections")
	ErrConfigFailure            = errors.New("config error")
	ErrHomeDirFailure           = errors.New("unable to get the user home dir")
)

// OutputConfig drives where a served credential ends up - the
// credential_process payload on stdout or a named profile section in the
// shared credentials file.
type OutputConfig struct {
	StoreInProfile bool
	CfgSectionName string
}

func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%s, %w", err, ErrHomeDirFailure)
	}
	return home, nil
}

// ConfigIniFile returns the path of the role registry ini file, rooted in
// basePath when provided, the user home otherwise.
func ConfigIniFile(basePath string) (string, error) {
	base := basePath
	if base == "" {
		home, err := HomeDir()
		if err != nil {
			return "", err
		}
		base = home
	}
	return path.Join(base, fmt.Sprintf(".%s.ini", rolecreds.SELF_NAME)), nil
}

// SetCredentials emits creds according to conf.
func SetCredentials(creds *rolecreds.AWSCredentials, conf OutputConfig) error {
	if conf.StoreInProfile {
		return storeCredentialsInProfile(*creds, conf.CfgSectionName)
	}
	return returnStdOutAsJson(*creds)
}

func storeCredentialsInProfile(creds rolecreds.AWSCredentials, configSection string) error {
	var awsConfPath string

	if overriddenpath, exists := os.LookupEnv("AWS_SHARED_CREDENTIALS_FILE"); exists {
		awsConfPath = overriddenpath
	} else {
		home, err := HomeDir()
		if err != nil {
			return err
		}
		awsConfDir := path.Join(home, ".aws")
		if err := os.MkdirAll(awsConfDir, 0755); err != nil {
			return err
		}
		awsConfPath = path.Join(awsConfDir, "credentials")
		if _, err := os.Stat(awsConfPath); os.IsNotExist(err) {
			if err := os.WriteFile(awsConfPath, []byte{}, 0600); err != nil {
				return err
			}
		}
	}

	cfg, err := ini.Load(awsConfPath)
	if err != nil {
		return fmt.Errorf("fail to read credentials file: %v, %w", err, ErrConfigFailure)
	}
	cfg.Section(configSection).Key("aws_access_key_id").SetValue(creds.AWSAccessKey)
	cfg.Section(configSection).Key("aws_secret_access_key").SetValue(creds.AWSSecretKey)
	cfg.Section(configSection).Key("aws_session_token").SetValue(creds.AWSSessionToken)
	return cfg.SaveTo(awsConfPath)
}

func returnStdOutAsJson(creds rolecreds.AWSCredentials) error {
	creds.Version = 1

	jsonBytes, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, string(jsonBytes))
	return nil
}

// WriteIniSection records role in the registry so clear-cache can find its
// keyring entry later.
func WriteIniSection(role string) error {
	section := fmt.Sprintf("%s.%s", INI_CONF_SECTION, RoleKeyConverter(role))
	iniFile, err := ConfigIniFile("")
	if err != nil {
		return err
	}
	if _, err := os.Stat(iniFile); os.IsNotExist(err) {
		if err := os.WriteFile(iniFile, []byte{}, 0600); err != nil {
			return err
		}
	}
	cfg, err := ini.Load(iniFile)
	if err != nil {
		return fmt.Errorf("fail to read ini file: %v, %w", err, ErrConfigFailure)
	}
	if !cfg.HasSection(section) {
		sct, err := cfg.NewSection(section)
		if err != nil {
			return err
		}
		sct.Key("name").SetValue(role)
		return cfg.SaveTo(iniFile)
	}

	return nil
}

func GetAllIniSections() ([]string, error) {
	sections := []string{}
	iniFile, err := ConfigIniFile("")
	if err != nil {
		return nil, err
	}
	cfg, err := ini.Load(iniFile)
	if err != nil {
		return nil, fmt.Errorf("unable to get sections from ini: %s, %w", err, ErrUnableToRetrieveSections)
	}
	for _, v := range cfg.Section(INI_CONF_SECTION).ChildSections() {
		sections = append(sections, strings.Replace(v.Name(), fmt.Sprintf("%s.", INI_CONF_SECTION), "", -1))
	}
	return sections, nil
}

// RoleKeyConverter converts a role to a key used for storing in key store
func RoleKeyConverter(role string) string {
	return strings.ReplaceAll(strings.ReplaceAll(role, ":", "_"), "/", "____")
}

// KeyRoleConverter converts a key back to a role
func KeyRoleConverter(key string) string {
	return strings.ReplaceAll(strings.ReplaceAll(key, "____", "/"), "_", ":")
}
