package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var schema string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate a schema without connecting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := rootOpts.schemaPath(schema)

			e, err := rootOpts.newEngine(cmd, path)
			if err != nil {
				return err
			}
			defer e.Close()

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "The schema at %s is valid.\n", path)

			return err
		},
	}

	cmd.Flags().StringVar(&schema, flagSchema, "", "schema file (default from config)")

	return cmd
}
