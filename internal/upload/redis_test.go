package upload

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisUploader_Upload(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	u := NewRedisUploader(rdb, "line1:results", 1000)
	rec := NewRecord(Meta{LineID: "L1", DeviceID: "EDGE-001"}, map[string]string{"serial": "SN-1A2B3C4D"}, at)

	args, err := u.Args(rec)
	require.NoError(t, err)
	assert.True(t, args.Approx)
	assert.Contains(t, args.Values, `{"serial":"SN-1A2B3C4D"}`)

	mock.ExpectXAdd(args).SetVal("1760689800000-0")
	require.NoError(t, u.Upload(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisUploader_Error(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	u := NewRedisUploader(rdb, "", 0)
	rec := NewRecord(Meta{}, nil, at)
	args, err := u.Args(rec)
	require.NoError(t, err)
	assert.Equal(t, DefaultStream, args.Stream)
	assert.False(t, args.Approx)

	boom := errors.New("READONLY replica")
	mock.ExpectXAdd(args).SetErr(boom)
	err = u.Upload(context.Background(), rec)
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisUploader_BadPayload(t *testing.T) {
	rdb, _ := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	err := NewRedisUploader(rdb, "s", 0).Upload(context.Background(), NewRecord(Meta{}, func() {}, at))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal payload")
}
