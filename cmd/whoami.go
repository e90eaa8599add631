package cmd

import (
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/dnitsch/aws-role-cache/internal/rolecreds"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Shows the AWS identity behind the current credentials",
	RunE:  whoami,
}

func init() {
	RootCmd.AddCommand(whoamiCmd)
}

func whoami(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to create session %s, %w", err, ErrUnableToCreateSession)
	}

	id, err := rolecreds.WhoAmI(ctx, sts.NewFromConfig(awsCfg))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Account: %s\nArn: %s\nUserId: %s\n", id.Account, id.Arn, id.UserId)
	return nil
}
