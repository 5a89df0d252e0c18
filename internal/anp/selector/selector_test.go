package selector

import (
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syscallConn interface {
	SyscallConn() (syscall.RawConn, error)
}

func socketFD(t *testing.T, conn net.Conn) int {
	t.Helper()
	sc, ok := conn.(syscallConn)
	require.True(t, ok, "connection does not expose a raw fd")
	raw, err := sc.SyscallConn()
	require.NoError(t, err)

	var fd int
	err = raw.Control(func(ufd uintptr) { fd = int(ufd) })
	require.NoError(t, err)
	return fd
}

func TestSelector_LowerTimeoutNeverIncreases(t *testing.T) {
	s := New()
	assert.Equal(t, Infinite, s.TimeoutMicros())

	s.LowerTimeoutMs(100)
	assert.Equal(t, int64(100*1000), s.TimeoutMicros())

	s.LowerTimeoutMs(500) // larger — must not increase
	assert.Equal(t, int64(100*1000), s.TimeoutMicros())

	s.LowerTimeoutMs(10)
	assert.Equal(t, int64(10*1000), s.TimeoutMicros())
}

func TestSelector_AddReadAlsoAddsError(t *testing.T) {
	s := New()
	s.AddRead(7)
	_, inRead := s.read[7]
	_, inErr := s.err[7]
	assert.True(t, inRead)
	assert.True(t, inErr)
}

func TestSelector_WaitReportsReadable(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		done <- c
	}()

	client, err := net.Dial("tcp4", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server := <-done
	require.NotNil(t, server)
	defer server.Close()

	// Write from client so the server socket becomes readable.
	_, err = client.Write([]byte("hi"))
	require.NoError(t, err)

	fd := socketFD(t, server)

	s := New()
	s.AddRead(fd)
	s.SetTimeoutMicros(int64(2 * time.Second / time.Microsecond))

	err = s.Wait()
	require.NoError(t, err)
	assert.True(t, s.InRead(fd))
}
