package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

const (
	flagQuery = "query"
	flagTrace = "trace"
	flagTxID  = "tx-id"

	stdinQuery = "-"
)

var ErrEmptyQuery = errors.New("empty query supplied")

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		schema string
		query  string
		trace  map[string]string
		txID   string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Connect, answer one JSON request body and disconnect",
		Long: `Connect to the schema's datasource, answer one request body and disconnect.

The body is {"query": ..., "variables": ...} or {"batch": [...], "transaction": bool}.
Pass --query - to read it from stdin. The JSON response is written to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := readQuery(cmd, query)
			if err != nil {
				return err
			}

			e, err := rootOpts.newEngine(cmd, rootOpts.schemaPath(schema))
			if err != nil {
				return err
			}
			defer e.Close()

			if err = e.ConnectSync(rootOpts.config.ConnectTimeout); err != nil {
				return err
			}

			response, queryErr := e.QuerySync(body, trace, txID)
			disconnectErr := e.DisconnectSync()

			if queryErr != nil {
				return queryErr
			}

			if _, err = fmt.Fprintln(cmd.OutOrStdout(), response); err != nil {
				return err
			}

			return disconnectErr
		},
	}

	cmd.Flags().StringVar(&schema, flagSchema, "", "schema file (default from config)")
	cmd.Flags().StringVar(&query, flagQuery, "", "request body, or - for stdin")
	cmd.Flags().StringToStringVar(&trace, flagTrace, nil, "trace context headers, e.g. traceparent=00-...")
	cmd.Flags().StringVar(&txID, flagTxID, "", "interactive transaction id")

	return cmd
}

func readQuery(cmd *cobra.Command, query string) (string, error) {
	if query == stdinQuery {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", err
		}

		query = string(raw)
	}

	if query == "" {
		return "", ErrEmptyQuery
	}

	return query, nil
}
