package datastore

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/krishisahay/krishisahay-go/internal/conf"
)

// TestMySQLStore runs the store against a real MySQL server in Docker.
func TestMySQLStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MySQL container test in short mode")
	}
	ctx := t.Context()

	ctr, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("krishisahay"),
		tcmysql.WithUsername("krishisahay"),
		tcmysql.WithPassword("krishisahay"),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("mysql container unavailable: %v", err)
	}

	endpoint, err := ctr.PortEndpoint(ctx, "3306/tcp", "")
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(endpoint)
	require.NoError(t, err)

	store := &MySQLStore{Config: conf.MySQLSettings{
		Host:     host,
		Port:     port,
		Username: "krishisahay",
		Password: "krishisahay",
		Database: "krishisahay",
	}}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.CreateAccount(ctx, "ramesh", "pw")
	require.NoError(t, err)
	_, err = store.CreateAccount(ctx, "ramesh", "pw")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	require.NoError(t, store.CreateRental(ctx, sampleRental("ramesh")))
	rentals, err := store.ListRentals(ctx)
	require.NoError(t, err)
	assert.Len(t, rentals, 1)
}

func TestDSN(t *testing.T) {
	dsn := DSN(conf.MySQLSettings{Host: "db", Port: "3306", Username: "u", Password: "p", Database: "k"})
	assert.Equal(t, "u:p@tcp(db:3306)/k?charset=utf8mb4&parseTime=True&loc=UTC", dsn)
}
