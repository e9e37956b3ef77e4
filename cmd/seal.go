package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/example/sport-scheduler/internal/infrastructure/config"
	"github.com/example/sport-scheduler/internal/infrastructure/crypto"
)

func newSealCmd(v *viper.Viper) *cobra.Command {
	var password string

	c := &cobra.Command{
		Use:   "seal",
		Short: "Seal a site password for the booking file",
		Long: `Seal encrypts a password with SPORTSCHED_SECRET_KEY. Put the printed value
in the booking file's password field. Without --password the first line of
stdin is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := v.GetString(config.KeySecretKey)
			if secret == "" {
				return fmt.Errorf("%s_SECRET_KEY is not set (generate one with `sportsched keys`)", config.EnvPrefix)
			}
			sealer, err := crypto.NewSealer(secret)
			if err != nil {
				return err
			}

			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("empty password")
			}

			token, err := sealer.Seal(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.SealedPrefix+token)
			return nil
		},
	}

	c.Flags().StringVar(&password, "password", "", "password to seal (default: read stdin)")
	return c
}
