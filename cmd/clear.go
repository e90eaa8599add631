package cmd

import (
	"os"
	"os/user"

	"github.com/dnitsch/aws-role-cache/internal/credstore"
	"github.com/dnitsch/aws-role-cache/internal/rolecreds"
	"github.com/spf13/cobra"
)

var (
	clearCmd = &cobra.Command{
		Use:   "clear-cache <flags>",
		Short: "Clears any stored credentials in the OS secret store",
		RunE:  clear,
	}
)

func init() {
	RootCmd.AddCommand(clearCmd)
}

func clear(cmd *cobra.Command, args []string) error {
	usr, err := user.Current()
	if err != nil {
		return err
	}

	secretStore, err := credstore.NewSecretStore(role, rolecreds.SELF_NAME, os.TempDir(), usr.Username)
	if err != nil {
		return err
	}

	if err := secretStore.ClearAll(); err != nil {
		return err
	}

	iniFile, err := credstore.ConfigIniFile("")
	if err != nil {
		return err
	}
	if err := os.Remove(iniFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
