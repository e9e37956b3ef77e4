package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/sport-scheduler/internal/infrastructure/config"
	"github.com/example/sport-scheduler/internal/infrastructure/crypto"
)

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Generate a secret key for sealing passwords",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := crypto.GenerateSecret()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export %s_SECRET_KEY=%s\n", config.EnvPrefix, secret)
			return nil
		},
	}
}
