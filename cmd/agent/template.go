package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/draftdesk/draftdesk-agent/internal/editor"
	"github.com/draftdesk/draftdesk-agent/internal/template"
	"github.com/spf13/cobra"
)

func newTemplateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "List, export and import draft templates",
	}
	cmd.AddCommand(
		newTemplateListCmd(opts),
		newTemplateExportCmd(opts),
		newTemplateImportCmd(opts),
	)
	return cmd
}

func newTemplateListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List templates stored on the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*opts)
			if err != nil {
				return err
			}
			defer a.Close()

			templates, err := a.client.Templates().List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTEXTS\tEFFECTS\tFILTERS")
			for _, t := range templates {
				s := t.Summary()
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", t.ID, t.Name, s.Texts, s.Effects, s.Filters)
			}
			return tw.Flush()
		},
	}
}

func newTemplateExportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export <id> <file>",
		Short: "Write a template to a YAML file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*opts)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.client.Templates().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := template.EncodeYAML(t)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], data, 0644); err != nil {
				return fmt.Errorf("write %s: %w", args[1], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "exported %q to %s\n", t.Name, args[1])
			return nil
		},
	}
}

func newTemplateImportCmd(opts *options) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create a template from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*opts)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := importTemplateFile(cmd.Context(), a, args[0], name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %q as %s\n", created.Name, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Override the template name stored in the file")
	return cmd
}

func importTemplateFile(ctx context.Context, a *app, path, name string) (template.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return template.Template{}, fmt.Errorf("read %s: %w", path, err)
	}
	t, err := template.DecodeYAML(data)
	if err != nil {
		return template.Template{}, err
	}
	if name == "" {
		name = t.Name
	}

	s := editor.New(a.client.Templates(), name, a.logger)
	defer s.Dispose()
	if _, err := s.ReplaceTracks(t.Tracks); err != nil {
		return template.Template{}, err
	}

	saved, vs, err := s.Save(ctx)
	if len(vs) > 0 {
		msgs := make([]string, len(vs))
		for i, v := range vs {
			msgs[i] = v.String()
		}
		return template.Template{}, fmt.Errorf("%s is not a valid template:\n  %s", path, strings.Join(msgs, "\n  "))
	}
	return saved, err
}
