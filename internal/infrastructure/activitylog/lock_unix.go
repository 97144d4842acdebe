//go:build unix

package activitylog

import "golang.org/x/sys/unix"

// flock takes an exclusive advisory lock on f, blocking until it is free.
// The returned func releases it.
func flock(f File) (func() error, error) {
	fd := int(f.Fd())
	for {
		err := unix.Flock(fd, unix.LOCK_EX)
		if err == nil {
			break
		}
		if err != unix.EINTR {
			return nil, err
		}
	}
	return func() error { return unix.Flock(fd, unix.LOCK_UN) }, nil
}
