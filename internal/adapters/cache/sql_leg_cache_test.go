package cache

import (
	"context"
	"fmt"
	"os"
	"pool-dispatch-service/internal/adapters/repositories"
	"pool-dispatch-service/internal/domain"
	"pool-dispatch-service/internal/platform/db"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestSQLLegCache(t *testing.T) {
	if os.Getenv("DOCKER_AVAILABLE") != "true" && os.Getenv("DOCKER_AVAILABLE") != "1" {
		t.Skip("docker not available")
	}

	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "dispatch",
				"POSTGRES_PASSWORD": "dispatch",
				"POSTGRES_DB":       "dispatch",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	conn, err := db.Open(ctx, fmt.Sprintf("postgres://dispatch:dispatch@%s:%s/dispatch?sslmode=disable", host, port.Port()), db.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, repositories.InitSchema(ctx, conn))

	c := NewSQLLegCache(conn, time.Hour)

	leg := domain.Leg{DurationSeconds: 300, DurationText: "5 mins", DistanceMeters: 2000, DistanceText: "1.2 mi"}
	require.NoError(t, c.PutMany(ctx, map[string]domain.Leg{"a|b": leg}))

	updated := leg
	updated.DurationSeconds = 360
	require.NoError(t, c.PutMany(ctx, map[string]domain.Leg{"a|b": updated}))

	got, err := c.GetMany(ctx, []string{"a|b", "x|y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Leg{"a|b": updated}, got)

	_, err = conn.ExecContext(ctx, `UPDATE directions_leg_cache SET updated_at = now() - interval '2 hours'`)
	require.NoError(t, err)

	got, err = c.GetMany(ctx, []string{"a|b"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
