package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"siteimage/internal/model"
)

func newAssetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List, search and back up stored images",
	}

	var withTags bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List every stored image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.svc.List(getContext(cmd), withTags)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			header := "PUBLIC ID\tFORMAT\tSIZE\tBYTES"
			if withTags {
				header += "\tTAGS"
			}
			fmt.Fprintln(w, header)
			for _, asset := range res.Items {
				line := fmt.Sprintf("%s\t%s\t%s\t%d", asset.PublicID, asset.Format, dimensions(asset), asset.Bytes)
				if withTags {
					line += "\t" + strings.Join(asset.Tags, ",")
				}
				fmt.Fprintln(w, line)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d images\n", res.Total)
			return nil
		},
	}
	list.Flags().BoolVar(&withTags, "tags", false, "Include tags")

	tagged := &cobra.Command{
		Use:   "tagged TAG",
		Short: "List the public ids carrying a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := a.svc.Tagged(getContext(cmd), args[0])
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	backup := &cobra.Command{
		Use:   "backup [PREFIX]",
		Short: "Copy local images to the S3 object store",
		Long: `Copy every image stored by the local backend into the MinIO bucket configured
through MINIO_ENDPOINT and MINIO_BUCKET, under PREFIX (default "backup").`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := "backup"
			if len(args) == 1 {
				prefix = args[0]
			}
			res, err := a.svc.Backup(getContext(cmd), prefix)
			if err != nil {
				return err
			}
			for _, obj := range res.Objects {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", obj.Key, obj.Size)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backed up %d images\n", res.Total)
			return nil
		},
	}

	cmd.AddCommand(list, tagged, backup)
	return cmd
}

func dimensions(a model.UploadResponse) string {
	if a.Width == nil || a.Height == nil {
		return "-"
	}
	return fmt.Sprintf("%dx%d", *a.Width, *a.Height)
}
