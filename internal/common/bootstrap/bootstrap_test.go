package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"visa-portal/internal/common/config"
	"visa-portal/internal/common/database"
	apperrors "visa-portal/internal/common/errors"
)

func TestRetryWithBackoff_EventuallySucceeds(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, 5, time.Millisecond, zaptest.NewLogger(t), "test dial")

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_GivesUp(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(func() error {
		attempts++
		return errors.New("connection refused")
	}, 3, time.Millisecond, zaptest.NewLogger(t), "test dial")

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "test dial failed after 3 attempts")
}

func TestBackends_CheckersSkipsDisabled(t *testing.T) {
	b := &Backends{Postgres: &database.PostgresClient{}, Redis: &database.RedisClient{}}

	names := []string{}
	for _, c := range b.Checkers() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"postgres", "redis"}, names)
}

func TestConnectPostgres_UnreachableIsDatabaseConnectionFailed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.PostgresConfig{
		Host: "127.0.0.1", Port: 1, Database: "visa_portal", User: "portal", Password: "secret", SSLMode: "disable",
	}
	pg, err := connectPostgres(ctx, cfg, 2, time.Millisecond, zaptest.NewLogger(t))

	require.Error(t, err)
	assert.Nil(t, pg)
	stdErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeDatabaseConnectionFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.Contains(t, stdErr.Details, "PostgreSQL connection failed after 2 attempts")
}
