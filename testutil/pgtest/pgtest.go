// Package pgtest starts a disposable PostgreSQL server for integration tests.
package pgtest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	image        = "postgres:17-alpine"
	port         = "5432/tcp"
	user         = "test"
	password     = "test"
	database     = "queryengine"
	startTimeout = 60 * time.Second

	// EnvURL points the tests at an already running server instead of starting a container.
	EnvURL = "QUERYENGINE_TEST_POSTGRES_URL"
)

// Start returns the URL of a PostgreSQL database that lives until the test finishes.
func Start(t testing.TB) string {
	t.Helper()

	if url := os.Getenv(EnvURL); url != "" {
		return url
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{port},
		Env: map[string]string{
			"POSTGRES_USER":     user,
			"POSTGRES_PASSWORD": password,
			"POSTGRES_DB":       database,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(port),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("postgres container host: %v", err)
	}

	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("postgres container port: %v", err)
	}

	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, mapped.Port(), database)
}
