//go:build integration

package mysqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/relaysync/syncbox"
	"github.com/relaysync/syncbox/mysqlstore"
)

func TestStoreEnqueueClaimCompleteIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	container, db := startMySQLContainer(t, ctx)
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(ctx)
	})

	setupSchema(t, ctx, db)

	store, err := mysqlstore.NewStore(db)
	require.NoError(t, err)

	ob, err := syncbox.NewOutbox(store)
	require.NoError(t, err)

	id, err := ob.Enqueue(ctx, syncbox.Operation{Kind: "http.post", Payload: []byte("hello")}, 1000)
	require.NoError(t, err)

	ready, err := ob.PeekReady(ctx, 1000, 10)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	require.Equal(t, id, ready[0].ID)

	claimed, err := ob.Claim(ctx, id, 1000)
	require.NoError(t, err)
	require.True(t, claimed)

	claimedAgain, err := ob.Claim(ctx, id, 1000)
	require.NoError(t, err)
	require.False(t, claimedAgain)

	done, err := ob.Complete(ctx, id, 2000)
	require.NoError(t, err)
	require.True(t, done)

	op, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, syncbox.StatusDone, op.Status)
}

func TestStoreFailRetryThenPermanentIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	container, db := startMySQLContainer(t, ctx)
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(ctx)
	})

	setupSchema(t, ctx, db)

	store, err := mysqlstore.NewStore(db)
	require.NoError(t, err)

	policy := syncbox.NewRetryPolicy(syncbox.WithMaxAttempts(1))
	ob, err := syncbox.NewOutbox(store, syncbox.WithRetryPolicy(policy))
	require.NoError(t, err)

	id, err := ob.Enqueue(ctx, syncbox.Operation{Kind: "http.post", Payload: []byte("hello")}, 1000)
	require.NoError(t, err)

	claimed, err := ob.Claim(ctx, id, 1000)
	require.NoError(t, err)
	require.True(t, claimed)

	failed, err := ob.Fail(ctx, id, "boom", 1000, true)
	require.NoError(t, err)
	require.True(t, failed)

	op, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, syncbox.StatusPermanentFailed, op.Status)
	require.Equal(t, 1, op.Attempt)
}

func TestStoreRequeueInflightOlderThanIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	container, db := startMySQLContainer(t, ctx)
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(ctx)
	})

	setupSchema(t, ctx, db)

	store, err := mysqlstore.NewStore(db)
	require.NoError(t, err)

	ob, err := syncbox.NewOutbox(store)
	require.NoError(t, err)

	id, err := ob.Enqueue(ctx, syncbox.Operation{Kind: "http.post", Payload: []byte("hello")}, 0)
	require.NoError(t, err)

	claimed, err := ob.Claim(ctx, id, 0)
	require.NoError(t, err)
	require.True(t, claimed)

	requeued, err := store.RequeueInflightOlderThan(ctx, 5000, 10000)
	require.NoError(t, err)
	require.Equal(t, 0, requeued)

	requeued, err = store.RequeueInflightOlderThan(ctx, 20000, 10000)
	require.NoError(t, err)
	require.Equal(t, 1, requeued)

	op, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, syncbox.StatusFailed, op.Status)
	require.Equal(t, 1, op.Attempt)
}

func TestStorePruneDoneIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	container, db := startMySQLContainer(t, ctx)
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(ctx)
	})

	setupSchema(t, ctx, db)

	store, err := mysqlstore.NewStore(db)
	require.NoError(t, err)

	ob, err := syncbox.NewOutbox(store)
	require.NoError(t, err)

	id, err := ob.Enqueue(ctx, syncbox.Operation{Kind: "http.post", Payload: []byte("hello")}, 1000)
	require.NoError(t, err)
	_, err = ob.Claim(ctx, id, 1000)
	require.NoError(t, err)
	_, err = ob.Complete(ctx, id, 1000)
	require.NoError(t, err)

	pruned, err := store.PruneDone(ctx, 500)
	require.NoError(t, err)
	require.Equal(t, 0, pruned)

	pruned, err = store.PruneDone(ctx, 2000)
	require.NoError(t, err)
	require.Equal(t, 1, pruned)

	_, err = store.Get(ctx, id)
	require.ErrorIs(t, err, syncbox.ErrOperationNotFound)
}

func startMySQLContainer(t *testing.T, ctx context.Context) (testcontainers.Container, *sql.DB) {
	t.Helper()
	port := nat.Port("3306/tcp")
	req := testcontainers.ContainerRequest{
		Image:        "mysql:8.0.36",
		ExposedPorts: []string{string(port)},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret",
			"MYSQL_DATABASE":      "syncbox",
		},
		WaitingFor: wait.ForSQL(port, "mysql", func(host string, port nat.Port) string {
			return fmt.Sprintf("root:secret@tcp(%s:%s)/syncbox?parseTime=true&multiStatements=true", host, port.Port())
		}).WithStartupTimeout(2 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("start mysql container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("resolve host: %v", err)
	}
	mappedPort, err := container.MappedPort(ctx, port)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("resolve port: %v", err)
	}

	dsn := fmt.Sprintf("root:secret@tcp(%s:%s)/syncbox?parseTime=true&multiStatements=true", host, mappedPort.Port())
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("open db: %v", err)
	}

	return container, db
}

func setupSchema(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()
	schema, err := mysqlstore.Schema("syncbox_operations")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, schema)
	require.NoError(t, err)
}
