package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xenking/kart-storefront/internal/session"
)

// NewSessionCommand prints the session identifier, optionally starting a
// new session.
func NewSessionCommand(root *RootOptions) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show the shopping session identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, root, func(ctx context.Context, e *env) error {
				sid := e.session
				if reset {
					e.carts.Reset(ctx)
					if err := session.Clear(ctx, e.state); err != nil {
						return WrapExitError(ExitFailure, "reset session", err)
					}
					var err error
					if sid, err = session.Load(ctx, e.state); err != nil {
						return WrapExitError(ExitFailure, "start session", err)
					}
				}
				_, err := fmt.Fprintln(e.out, sid)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Forget the current session and its cart")
	return cmd
}
