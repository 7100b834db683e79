// Package mempool recycles the large float32 buffers used for network input.
package mempool

import (
	"sync"
)

var float32Pools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to a multiple of 1024 so similarly sized requests share a pool.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func poolFor(cls int) *sync.Pool {
	pAny, _ := float32Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float32, cls) }})
	p, _ := pAny.(*sync.Pool)
	return p
}

// GetFloat32 retrieves a []float32 buffer of length n from the pool.
// Contents are undefined; the caller returns it via PutFloat32 when done.
func GetFloat32(n int) []float32 {
	cls := sizeClass(n)
	p := poolFor(cls)
	if p == nil {
		return make([]float32, n)
	}
	buf, ok := p.Get().([]float32)
	if !ok || cap(buf) < cls {
		buf = make([]float32, cls)
	}
	return buf[:n]
}

// PutFloat32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat32(buf []float32) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		// not one of ours
		return
	}
	if p := poolFor(cls); p != nil {
		p.Put(buf[:cap(buf)]) //nolint:staticcheck
	}
}
