package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/smallbiznis/claimflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"nil":        {nil, false},
		"translated": {fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		"postgres":   {errors.New(`ERROR: duplicate key value violates unique constraint "idx_documents_object_key" (SQLSTATE 23505)`), true},
		"mysql":      {errors.New("Error 1062 (23000): Duplicate entry '7' for key 'PRIMARY'"), true},
		"sqlite":     {errors.New("UNIQUE constraint failed: claim_adjustments.claim_id"), true},
		"other":      {errors.New("connection refused"), false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDuplicateKeyErr(tc.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("load claim: %w", gorm.ErrRecordNotFound)))
	assert.False(t, IsNotFound(gorm.ErrInvalidData))
	assert.False(t, IsNotFound(nil))
}

func TestDialect(t *testing.T) {
	for _, kind := range []string{"postgres", "mysql", "sqlite"} {
		dialector, err := Dialect(config.Config{DBType: kind, DBName: "claims"})
		require.NoError(t, err, kind)
		assert.Equal(t, kind, dialector.Name())
	}

	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.EqualError(t, err, "unsupported oracle type")
}

func TestPoolFromConfig(t *testing.T) {
	pool := PoolFromConfig(config.Config{DBMaxIdleConn: 5, DBMaxOpenConn: 20, DBConnMaxLifetime: 300, DBConnMaxIdleTime: 60})
	assert.Equal(t, 5, pool.MaxIdleConn)
	assert.Equal(t, 20, pool.MaxOpenConn)
	assert.Equal(t, "5m0s", pool.ConnMaxLifetime.String())
	assert.Equal(t, "1m0s", pool.ConnMaxIdleTime.String())
}
