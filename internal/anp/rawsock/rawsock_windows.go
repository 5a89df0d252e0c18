//go:build windows

package rawsock

import "fmt"

var errNotImplemented = fmt.Errorf("rawsock: not implemented on windows")

func NewTCP4() (FD, error)                { return -1, errNotImplemented }
func Listen(port, backlog int) (FD, int, error) { return -1, 0, errNotImplemented }

func (fd FD) Connect(port int) error   { return errNotImplemented }
func (fd FD) ConnectResult() error     { return errNotImplemented }
func (fd FD) Accept() (FD, error)      { return -1, errNotImplemented }
func (fd FD) Read(buf []byte) (int, error)  { return 0, errNotImplemented }
func (fd FD) Write(buf []byte) (int, error) { return 0, errNotImplemented }
func (fd FD) Close() error             { return nil }
