package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestPing(t *testing.T) {
	rdb, mock := redismock.NewClientMock()

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, Ping(rdb)(context.Background()))

	mock.ExpectPing().SetErr(errors.New("connection refused"))
	assert.Error(t, Ping(rdb)(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, "127.0.0.1:1")
	assert.Error(t, err)
}
