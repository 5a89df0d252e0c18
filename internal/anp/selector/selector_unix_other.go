//go:build unix && !linux

package selector

import "golang.org/x/sys/unix"

// Wait implements the same readiness contract as the Linux select(2)-based
// Wait, but via poll(2) — non-Linux unix FdSet word width varies by
// platform (32-bit on Darwin/BSD vs 64-bit on Linux), so poll is used here
// instead of hand-rolling per-platform FdSet bit math.
func (s *Selector) Wait() error {
	fds := make(map[int]*unix.PollFd)
	get := func(fd int) *unix.PollFd {
		if p, ok := fds[fd]; ok {
			return p
		}
		p := &unix.PollFd{Fd: int32(fd)}
		fds[fd] = p
		return p
	}
	for fd := range s.read {
		get(fd).Events |= unix.POLLIN
	}
	for fd := range s.write {
		get(fd).Events |= unix.POLLOUT
	}
	for fd := range s.err {
		get(fd) // ensure present even if not read/write interested
	}

	list := make([]unix.PollFd, 0, len(fds))
	for _, p := range fds {
		list = append(list, *p)
	}

	timeoutMs := -1
	if s.timeoutUs != Infinite {
		timeoutMs = int(s.timeoutUs / 1000)
	}

	_, err := unix.Poll(list, timeoutMs)
	if err != nil && err != unix.EINTR {
		return &fatalErr{cause: err}
	}

	s.readyRead = make(map[int]struct{})
	s.readyWrite = make(map[int]struct{})
	s.readyErr = make(map[int]struct{})

	for _, p := range list {
		fd := int(p.Fd)
		if p.Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
			s.readyRead[fd] = struct{}{}
		}
		if p.Revents&unix.POLLOUT != 0 {
			s.readyWrite[fd] = struct{}{}
		}
		if p.Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
			s.readyErr[fd] = struct{}{}
		}
	}
	return nil
}
