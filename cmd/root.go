package cmd

import (
	"fmt"
	"os"

	"github.com/dnitsch/aws-role-cache/internal/rolecreds"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	role           string
	cfgSectionName string
	cfgFile        string
	storeInProfile bool
	verbose        bool
	RootCmd        = &cobra.Command{
		Use:   rolecreds.SELF_NAME,
		Short: "CLI tool for caching AWS temporary credentials",
		Long: `CLI tool for retrieving and caching AWS temporary credentials for an assumed role.
Reuses the previously issued credentials for as long as they have enough remaining lifetime and refreshes them via STS otherwise.
Stores them under the $HOME/.aws/credentials file under a specified path or returns the credential_process payload for use in config`,
	}
)

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is $HOME/.%s.yaml)", rolecreds.SELF_NAME))
	RootCmd.PersistentFlags().StringVarP(&role, "role", "r", "", "Set the role you want to assume")
	RootCmd.PersistentFlags().StringVarP(&cfgSectionName, "cfg-section", "", "", "config section name in the yaml config file")
	RootCmd.PersistentFlags().BoolVarP(&storeInProfile, "store-profile", "s", false, "By default the credentials are returned to stdout to be used by the credential_process. Set this flag to instead store the credentials under a named profile section")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(fmt.Sprintf(".%s", rolecreds.SELF_NAME))
	}

	viper.AutomaticEnv()

	// stdout carries the credential_process payload
	logrus.SetOutput(os.Stderr)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := viper.ReadInConfig(); err == nil {
		logrus.Debugf("using config file: %s", viper.ConfigFileUsed())
	}
}
