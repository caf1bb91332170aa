package middleware

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const rawTCPCopyBufferSize = 8192

// RawTCPConfig holds the opaque-passthrough upstream address.
type RawTCPConfig struct {
	UpstreamAddr   string
	ConnectTimeoutSeconds int
}

// NewRawTCPHandler returns a pipeline.RawTCPHandler that bidirectionally
// streams bytes between the accepted connection and cfg.UpstreamAddr,
// replacing the HTTP pipeline entirely for the accepted connection.
func NewRawTCPHandler(cfg RawTCPConfig, log zerolog.Logger) func(conn net.Conn) {
	return func(client net.Conn) {
		defer client.Close()

		upstream, err := net.DialTimeout("tcp", cfg.UpstreamAddr, time.Duration(cfg.ConnectTimeoutSeconds)*time.Second)
		if err != nil {
			log.Warn().Err(err).Str("upstream", cfg.UpstreamAddr).Msg("raw_tcp: upstream connect failed")
			return
		}
		defer upstream.Close()

		var wg sync.WaitGroup
		wg.Add(2)
		go copyAndHalfClose(&wg, upstream, client)
		go copyAndHalfClose(&wg, client, upstream)
		wg.Wait()
	}
}

func copyAndHalfClose(wg *sync.WaitGroup, dst, src net.Conn) {
	defer wg.Done()
	buf := make([]byte, rawTCPCopyBufferSize)
	io.CopyBuffer(dst, src, buf)
	if cw, ok := dst.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
	}
}
