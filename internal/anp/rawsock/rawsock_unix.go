//go:build unix

package rawsock

import "golang.org/x/sys/unix"

// NewTCP4 creates a non-blocking IPv4 TCP socket.
func NewTCP4() (FD, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return FD(fd), nil
}

// Listen binds to 127.0.0.1:port (port 0 picks an ephemeral port), starts
// listening with the given backlog, and returns the socket along with the
// port actually bound.
func Listen(port, backlog int) (FD, int, error) {
	fd, err := NewTCP4()
	if err != nil {
		return -1, 0, err
	}
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		fd.Close()
		return -1, 0, err
	}
	sa := &unix.SockaddrInet4{Port: port, Addr: [4]byte{127, 0, 0, 1}}
	if err := unix.Bind(int(fd), sa); err != nil {
		fd.Close()
		return -1, 0, err
	}
	if err := unix.Listen(int(fd), backlog); err != nil {
		fd.Close()
		return -1, 0, err
	}
	bound, err := unix.Getsockname(int(fd))
	if err != nil {
		fd.Close()
		return -1, 0, err
	}
	boundAddr, ok := bound.(*unix.SockaddrInet4)
	if !ok {
		fd.Close()
		return -1, 0, errConnLostf("unexpected sockaddr type for listener")
	}
	return fd, boundAddr.Port, nil
}

// Connect initiates a non-blocking connect to 127.0.0.1:port. It returns nil
// immediately if the connect completed synchronously (rare for loopback but
// possible), ErrWouldBlock if it is in progress (the common case — the
// caller must select on write-readiness and call ConnectResult), or a fatal
// error otherwise.
func (fd FD) Connect(port int) error {
	sa := &unix.SockaddrInet4{Port: port, Addr: [4]byte{127, 0, 0, 1}}
	err := unix.Connect(int(fd), sa)
	if err == nil {
		return nil
	}
	if err == unix.EINPROGRESS {
		return ErrWouldBlock
	}
	return err
}

// ConnectResult checks SO_ERROR after a Connect that returned ErrWouldBlock
// and the Selector reports the descriptor write-ready. nil means the
// connection is established.
func (fd FD) ConnectResult() error {
	errno, err := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

// Accept accepts one pending connection. ErrWouldBlock means none is
// pending yet.
func (fd FD) Accept() (FD, error) {
	nfd, _, err := unix.Accept(int(fd))
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return -1, ErrWouldBlock
		}
		return -1, err
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return -1, err
	}
	return FD(nfd), nil
}

// Read reads into buf. It returns (n, nil) for a partial or full read,
// (0, ErrWouldBlock) if nothing is available yet, (0, ErrConnLost) if the
// peer closed the connection, or (0, err) for any other OS error.
func (fd FD) Read(buf []byte) (int, error) {
	n, err := unix.Read(int(fd), buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		if err == unix.EINTR {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	if n == 0 {
		return 0, ErrConnLost
	}
	return n, nil
}

// Write writes buf and returns the number of bytes accepted by the kernel
// buffer, which may be less than len(buf). ErrWouldBlock means zero bytes
// were accepted and the caller must wait for write-readiness.
func (fd FD) Write(buf []byte) (int, error) {
	n, err := unix.Write(int(fd), buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		if err == unix.EINTR {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

// Close closes the descriptor.
func (fd FD) Close() error { return unix.Close(int(fd)) }

type connLostErr string

func (e connLostErr) Error() string { return string(e) }

func errConnLostf(msg string) error { return connLostErr(msg) }
