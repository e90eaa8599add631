package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/user"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/dnitsch/aws-role-cache/internal/cmdutils"
	"github.com/dnitsch/aws-role-cache/internal/credstore"
	"github.com/dnitsch/aws-role-cache/internal/rolecreds"
	"github.com/spf13/cobra"
)

var (
	ErrUnableToCreateSession = errors.New("sts - cannot start a new session")
)

var (
	externalId       string
	sourceIdentity   string
	sessionName      string
	duration         int
	reloadBeforeTime int
	assumeCmd        = &cobra.Command{
		Use:   "assume <flags>",
		Short: "Assume a role and out the temporary credentials to stdout",
		Long:  `Assume a role and out the temporary credentials to stdout. Previously issued credentials are reused while they have more than --reload-before seconds of lifetime left.`,
		RunE:  assumeRole,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if reloadBeforeTime != 0 && reloadBeforeTime >= duration {
				return fmt.Errorf("reload-before: %v, must be less than duration (-d): %v", reloadBeforeTime, duration)
			}
			return nil
		},
	}
)

func init() {
	assumeCmd.PersistentFlags().StringVarP(&externalId, "external-id", "e", "", "External Id to pass on the AssumeRole call")
	assumeCmd.PersistentFlags().StringVarP(&sourceIdentity, "source-identity", "", "", "Source identity to pass on the AssumeRole call")
	assumeCmd.PersistentFlags().StringVarP(&sessionName, "session-name", "n", "", "Name of the role session, generated when not set")
	assumeCmd.PersistentFlags().IntVarP(&duration, "max-duration", "d", 900, "Override default max session duration, in seconds, of the role session [900-43200]")
	assumeCmd.PersistentFlags().IntVarP(&reloadBeforeTime, "reload-before", "", 300, "Triggers a credentials refresh before the specified max-duration. Value provided in seconds. Should be less than the max-duration of the session")
	RootCmd.AddCommand(assumeCmd)
}

func assumeRole(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	usr, err := user.Current()
	if err != nil {
		return err
	}

	secretStore, err := credstore.NewSecretStore(role,
		fmt.Sprintf("%s-%s", rolecreds.SELF_NAME, credstore.RoleKeyConverter(role)),
		os.TempDir(), usr.Username)
	if err != nil {
		return err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to create session %s, %w", err, ErrUnableToCreateSession)
	}

	provider, err := rolecreds.New(rolecreds.Config{
		RoleArn:          role,
		ExternalId:       externalId,
		SourceIdentity:   sourceIdentity,
		SessionName:      sessionName,
		Duration:         duration,
		ReloadBeforeTime: reloadBeforeTime,
	}, sts.NewFromConfig(awsCfg))
	if err != nil {
		return err
	}

	// the stored credential is verified with itself, not with the
	// ambient identity
	checkSvc := func(cred *rolecreds.AWSCredentials) rolecreds.CallerIdentityApi {
		staticCfg := awsCfg.Copy()
		staticCfg.Credentials = credentials.NewStaticCredentialsProvider(
			cred.AWSAccessKey, cred.AWSSecretKey, cred.AWSSessionToken)
		return sts.NewFromConfig(staticCfg)
	}

	return cmdutils.GetRoleCreds(ctx, provider, checkSvc, secretStore, cmdutils.CredsConfig{
		Output: credstore.OutputConfig{
			StoreInProfile: storeInProfile,
			CfgSectionName: cfgSectionName,
		},
		ReloadBeforeTime: reloadBeforeTime,
	})
}
