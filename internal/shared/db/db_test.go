package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLiteMemory(t *testing.T) {
	conn, err := Connect(DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(`CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO t (v) VALUES (1)`)
	require.NoError(t, err)

	// mesma conexão, mesmo banco em memória
	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, conn.Stats().MaxOpenConnections)
}

func TestConnectUnknownDriver(t *testing.T) {
	_, err := Connect("mysql", "x")
	assert.Error(t, err)
}
