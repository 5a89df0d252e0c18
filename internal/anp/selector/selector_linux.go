//go:build linux

package selector

import "golang.org/x/sys/unix"

const fdSetWordBits = 64

func fdSetBit(set *unix.FdSet, fd int) {
	set.Bits[fd/fdSetWordBits] |= 1 << (uint(fd) % fdSetWordBits)
}

func fdSetIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/fdSetWordBits]&(1<<(uint(fd)%fdSetWordBits)) != 0
}

// Wait blocks until a registered descriptor is ready or the stored timeout
// elapses, then populates the readiness sets queried by In*.
func (s *Selector) Wait() error {
	var rset, wset, eset unix.FdSet
	maxFD := 0

	for fd := range s.read {
		fdSetBit(&rset, fd)
		if fd > maxFD {
			maxFD = fd
		}
	}
	for fd := range s.write {
		fdSetBit(&wset, fd)
		if fd > maxFD {
			maxFD = fd
		}
	}
	for fd := range s.err {
		fdSetBit(&eset, fd)
		if fd > maxFD {
			maxFD = fd
		}
	}

	var timeout *unix.Timeval
	if s.timeoutUs != Infinite {
		tv := unix.NsecToTimeval(s.timeoutUs * 1000)
		timeout = &tv
	}

	_, err := unix.Select(maxFD+1, &rset, &wset, &eset, timeout)
	if err != nil {
		return &fatalErr{cause: err}
	}

	s.readyRead = make(map[int]struct{})
	s.readyWrite = make(map[int]struct{})
	s.readyErr = make(map[int]struct{})

	for fd := range s.read {
		if fdSetIsSet(&rset, fd) {
			s.readyRead[fd] = struct{}{}
		}
	}
	for fd := range s.write {
		if fdSetIsSet(&wset, fd) {
			s.readyWrite[fd] = struct{}{}
		}
	}
	for fd := range s.err {
		if fdSetIsSet(&eset, fd) {
			s.readyErr[fd] = struct{}{}
		}
	}
	return nil
}
