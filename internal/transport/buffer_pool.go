package transport

import (
	"sync"

	"github.com/lanswarm/swarmdns/internal/protocol"
)

// bufferPool recycles receive buffers sized to protocol.MaxDatagramSize so
// Receive does not allocate on every inbound packet.
var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, protocol.MaxDatagramSize)
		return &buf
	},
}

// GetBuffer returns a pointer to a MaxDatagramSize buffer from the pool.
// Callers must return it via PutBuffer, normally with defer.
func GetBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// PutBuffer zeroes and returns a buffer to the pool. The caller must not
// use the buffer after this call.
func PutBuffer(bufPtr *[]byte) {
	buf := *bufPtr
	for i := range buf {
		buf[i] = 0
	}
	bufferPool.Put(bufPtr)
}
