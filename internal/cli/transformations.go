package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newTransformationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transformations",
		Aliases: []string{"tr"},
		Short:   "Inspect and build named transformations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the configured transformation table as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := yaml.Marshal(a.svc.Transformations())
			if err != nil {
				return fmt.Errorf("encode transformations: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "build",
		Short: "Reconcile server-side named transformations with configuration",
		Long: `Create or update every configured transformation on the backend and delete
named transformations that are no longer configured. The local backend derives
images on demand, so there is nothing to build there.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.svc.BuildTransformations(getContext(cmd)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "built %d transformations\n", len(a.svc.Transformations()))
			return nil
		},
	})
	return cmd
}
