package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "postgres",
			cfg:  DatabaseConfig{Driver: "postgres", Host: "db", Database: "runs", Username: "u", Password: "p"},
			want: "host=db port=5432 dbname=runs user=u password=p sslmode=disable",
		},
		{
			name: "mysql",
			cfg:  DatabaseConfig{Driver: "mysql", Host: "db", Database: "runs", Username: "u", Password: "p"},
			want: "u:p@tcp(db:3306)/runs?parseTime=true",
		},
		{
			name: "sqlite",
			cfg:  DatabaseConfig{Driver: "sqlite", Database: "crewlink.db"},
			want: "crewlink.db",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.SetDefaults()
			require.NoError(t, tt.cfg.Validate())
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}

func TestDatabaseConfig_Placeholder(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres"}
	lite := DatabaseConfig{Driver: "sqlite"}

	assert.Equal(t, "$3", pg.Placeholder(3))
	assert.Equal(t, "?", lite.Placeholder(3))
	assert.Equal(t, "sqlite3", lite.DriverName())
}

func TestDatabaseConfig_Validate(t *testing.T) {
	assert.Error(t, (&DatabaseConfig{}).Validate())
	assert.Error(t, (&DatabaseConfig{Driver: "oracle", Database: "x"}).Validate())
	assert.Error(t, (&DatabaseConfig{Driver: "sqlite"}).Validate())
	assert.Error(t, (&DatabaseConfig{Driver: "postgres", Database: "x"}).Validate())
}

func TestDBPool_SQLite(t *testing.T) {
	pool := NewDBPool()
	defer pool.Close()

	cfg := &DatabaseConfig{Driver: "sqlite", Database: filepath.Join(t.TempDir(), "pool.db")}
	db1, err := pool.Get(context.Background(), cfg)
	require.NoError(t, err)
	db2, err := pool.Get(context.Background(), cfg)
	require.NoError(t, err)

	assert.Same(t, db1, db2)
	assert.Equal(t, 1, db1.Stats().MaxOpenConnections)
	require.NoError(t, pool.Close())
}
