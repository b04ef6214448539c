package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"siteimage/internal/imagehost"
)

func newUploadCmd(a *app) *cobra.Command {
	var (
		opts     imagehost.UploadOptions
		moderate bool
	)
	cmd := &cobra.Command{
		Use:   "upload SOURCE",
		Short: "Upload an image",
		Long: `Upload an image from a file path, http(s) URL, s3://bucket/key object,
data URI or base64 string and print the upload response as JSON.

Examples:
  imagehost upload ./cat.png --folder pets --tag animals -t thumbnail
  imagehost upload https://example.com/banner.jpg --overwrite
  imagehost upload s3://images/raw/dog.png --moderate`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.UploadSource(getContext(cmd), args[0], opts, moderate)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&opts.Folder, "folder", "", "Folder namespacing the public id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Name to derive the public id from instead of SOURCE")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "Tag to attach (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.Transformations, "transformation", "t", nil, "Transformation to produce eagerly (repeatable)")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "Replace an existing image with the same public id")
	cmd.Flags().BoolVar(&moderate, "moderate", false, "Mark the upload as pending moderation")
	return cmd
}

func newURLCmd(a *app) *cobra.Command {
	var transformation, format string
	cmd := &cobra.Command{
		Use:   "url [PUBLIC_ID]",
		Short: "Print the delivery URL of an image (the placeholder without PUBLIC_ID)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var publicID string
			if len(args) == 1 {
				publicID = args[0]
			}
			u, err := a.svc.URL(getContext(cmd), publicID, transformation, format)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		},
	}
	cmd.Flags().StringVarP(&transformation, "transformation", "t", "", "Named transformation")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (jpg, png, gif, bmp, tif)")
	return cmd
}

func newRenameCmd(a *app) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "rename FROM TO",
		Short: "Move an image to a new public id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.Rename(getContext(cmd), args[0], args[1], overwrite)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace TO when it exists")
	return cmd
}

func newDestroyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy PUBLIC_ID",
		Short: "Delete an image and its derivatives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.svc.Delete(getContext(cmd), args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s not found\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newDestroyAllCmd(a *app) *cobra.Command {
	var (
		tag string
		all bool
	)
	cmd := &cobra.Command{
		Use:   "destroy-all",
		Short: "Delete every image carrying a tag, or everything with --all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tag == "" && !all {
				return errors.New("pass --tag, or --all to delete every image")
			}
			if err := a.svc.DeleteAll(getContext(cmd), tag); err != nil {
				return err
			}
			if tag == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "deleted all images")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted images tagged %s\n", tag)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "Only delete images carrying this tag")
	cmd.Flags().BoolVar(&all, "all", false, "Delete every image")
	return cmd
}

func newModerationCmd(a *app, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " PUBLIC_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := getContext(cmd)
			var err error
			if verb == "approve" {
				err = a.svc.Approve(ctx, args[0])
			} else {
				err = a.svc.Reject(ctx, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%sd %s\n", verb, args[0])
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
