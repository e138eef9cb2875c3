//go:build integration

package store

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/Sternrassler/swapi-loader/pkg/people"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL container and returns its connection config.
func setupPostgres(t *testing.T) PostgresConfig {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "user",
			"POSTGRES_PASSWORD": "123",
			"POSTGRES_DB":       "asy",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	portNum, err := strconv.Atoi(port.Port())
	if err != nil {
		t.Fatalf("Invalid mapped port %q: %v", port.Port(), err)
	}

	return PostgresConfig{
		Host:     host,
		Port:     portNum,
		User:     "user",
		Password: "123",
		Name:     "asy",
		SSLMode:  "disable",
	}
}

func TestIntegration_PostgresPersist(t *testing.T) {
	cfg := setupPostgres(t)
	ctx := context.Background()

	for _, mode := range []Mode{ModeJSON, ModeColumns} {
		t.Run(string(mode), func(t *testing.T) {
			s, err := Open(ctx, cfg, Options{Mode: mode, InsertBatchSize: 1})
			require.NoError(t, err)
			defer s.Close()

			records := []*people.Record{found(1, "Luke Skywalker"), notFound(2), found(3, "R2-D2")}
			require.NoError(t, s.Persist(ctx, records))

			ids, err := s.IDs(ctx)
			require.NoError(t, err)
			if mode == ModeJSON {
				assert.Equal(t, []int{1, 2, 3}, ids)
			} else {
				assert.Equal(t, []int{1, 3}, ids)
			}

			// Second insert of the same ids violates the primary key and must roll back.
			err = s.Persist(ctx, []*people.Record{found(4, "Darth Vader"), found(1, "Luke Skywalker")})
			require.Error(t, err)

			after, err := s.IDs(ctx)
			require.NoError(t, err)
			assert.Equal(t, ids, after)
		})
	}
}

func TestIntegration_PostgresJSONBColumn(t *testing.T) {
	cfg := setupPostgres(t)
	ctx := context.Background()

	s, err := Open(ctx, cfg, Options{Mode: ModeJSON})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Persist(ctx, []*people.Record{found(1, "Luke Skywalker")}))

	var name string
	err = s.DB.Raw(`SELECT json->>'name' FROM "Heroes" WHERE id = ?`, 1).Scan(&name).Error
	require.NoError(t, err)
	assert.Equal(t, "Luke Skywalker", name)
}
