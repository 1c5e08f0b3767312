package main

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syncordian/syncordian/pkg/byzsig"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 peer signing keypair",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := byzsig.GenerateKeyPair()
			if err != nil {
				return fmt.Errorf("keygen: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "public:  %s\n", base64.StdEncoding.EncodeToString(kp.Public))
			fmt.Fprintf(out, "private: %s  (sensitive — store like a credential, never commit it)\n", base64.StdEncoding.EncodeToString(kp.PrivateKey()))
			return nil
		},
	}
}
