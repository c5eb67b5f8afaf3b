package main

import (
	"fmt"
	"os"
	"path/filepath"

	goProfile "github.com/MrEthical07/goProfile"
	"github.com/MrEthical07/goProfile/capability"
	"github.com/spf13/cobra"
)

func newBootstrapCommand(a *app) *cobra.Command {
	var admin string

	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Mint the first admin capability (succeeds once per deployment)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, closeRedis, err := a.redisClient(ctx, false)
			if err != nil {
				return err
			}
			defer closeRedis()

			engine, err := a.buildEngine(client, false, nil)
			if err != nil {
				return err
			}
			defer engine.Close()

			ac, err := engine.BootstrapAdmin(ctx, goProfile.Principal(admin))
			if err != nil {
				return err
			}
			a.logger.Info().Str("holder", string(ac.Holder())).Str("cap_id", ac.ID()).Msg("admin bootstrapped")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ac.Token())
			return err
		},
	}
	cmd.Flags().StringVar(&admin, "admin", "", "principal that receives the root capability")
	_ = cmd.MarkFlagRequired("admin")
	return cmd
}

func newKeygenCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 capability signing key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, pub, err := writeKeyPair(dir)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "private key: %s\npublic key: %s\n", priv, pub)
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "directory for capability.key and capability.pub")
	return cmd
}

func writeKeyPair(dir string) (privPath, pubPath string, err error) {
	priv, pub, err := capability.GenerateEd25519PEM()
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", "", err
	}
	privPath = filepath.Join(dir, "capability.key")
	pubPath = filepath.Join(dir, "capability.pub")
	if err := os.WriteFile(privPath, priv, 0o600); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
		return "", "", err
	}
	return privPath, pubPath, nil
}
