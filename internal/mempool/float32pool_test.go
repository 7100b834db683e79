package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeClass(t *testing.T) {
	assert.Equal(t, 1024, sizeClass(1))
	assert.Equal(t, 1024, sizeClass(1024))
	assert.Equal(t, 2048, sizeClass(1025))
	assert.Equal(t, 3*640*640, sizeClass(3*640*640))
}

func TestGetPutFloat32(t *testing.T) {
	buf := GetFloat32(3 * 640 * 640)
	assert.Len(t, buf, 3*640*640)
	buf[0] = 42
	PutFloat32(buf)

	again := GetFloat32(100)
	assert.Len(t, again, 100)
	assert.GreaterOrEqual(t, cap(again), 1024)
	PutFloat32(again)

	PutFloat32(nil)
	PutFloat32(make([]float32, 7)) // foreign slice is ignored
}
