package relay

import (
	"sync"

	"rondo/internal/constants"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, constants.CopyBufferSize)
	},
}

func GetBuffer() []byte {
	return bufferPool.Get().([]byte)
}

func PutBuffer(buf []byte) {
	if cap(buf) >= constants.CopyBufferSize {
		bufferPool.Put(buf[:constants.CopyBufferSize])
	}
}
