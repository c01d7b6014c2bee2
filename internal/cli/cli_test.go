package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/embedded-query-engine-go/host"
	"github.com/AntonStoeckl/embedded-query-engine-go/internal/cli"
)

const sqliteSchema = `
datasource "db" {
  provider = "sqlite"
  url      = "file:cli.db"
}

model "Note" {
  field "id" {
    type          = "Int"
    id            = true
    autoincrement = true
  }

  field "text" {
    type = "String"
  }
}
`

func writeSchema(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "schema.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.Execute()

	return stdout.String(), err
}

func Test_RootCommand_HasSubcommandsAndGlobalFlags(t *testing.T) {
	// setup
	cmd := cli.NewRootCommand()

	// assert
	for _, name := range []string{"validate", "query"} {
		subCmd, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, subCmd.Name())
	}

	for _, flag := range []string{"config", "log-level", "log-queries", "timeout", "otlp-endpoint"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func Test_Validate(t *testing.T) {
	// setup
	valid := writeSchema(t, sqliteSchema)
	invalid := writeSchema(t, "datasource \"db\" {\n  provider = \n}")

	// act
	validOutput, validErr := run(t, "", "validate", "--schema", valid)
	_, invalidErr := run(t, "", "validate", "--schema", invalid)

	// assert
	require.NoError(t, validErr)
	assert.Contains(t, validOutput, "is valid")

	var hostErr *host.HostError
	require.ErrorAs(t, invalidErr, &hostErr)
	assert.Equal(t, host.ConfigurationError, hostErr.Type)
	assert.Contains(t, hostErr.Message, "Validation Error Count")
}

func Test_Query_AgainstSQLite(t *testing.T) {
	// setup
	schema := writeSchema(t, sqliteSchema)
	_, err := run(t,
		`{"query": "mutation { executeRaw(query: \"CREATE TABLE Note (id INTEGER PRIMARY KEY AUTOINCREMENT, text TEXT NOT NULL)\") }"}`,
		"query", "--schema", schema, "--query", "-",
	)
	require.NoError(t, err)

	// act
	_, createErr := run(t, "", "query", "--schema", schema, "--query", `{"query": "mutation { createOneNote(data: {text: \"hi\"}) { id } }"}`)
	output, findErr := run(t, "", "query", "--schema", schema, "--timeout", "5s", "--query", `{"query": "{ findManyNote { text } }"}`)

	// assert
	require.NoError(t, createErr)
	require.NoError(t, findErr)
	assert.JSONEq(t, `{"data": {"findManyNote": [{"text": "hi"}]}}`, output)
}

func Test_Query_RequiresABody(t *testing.T) {
	// setup
	schema := writeSchema(t, sqliteSchema)

	// act
	_, err := run(t, "", "query", "--schema", schema)

	// assert
	assert.ErrorIs(t, err, cli.ErrEmptyQuery)
}
