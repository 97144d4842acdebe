//go:build !unix

package activitylog

// flock is a no-op where advisory file locks are unavailable; the
// in-process path mutex still serializes writers of this process.
func flock(File) (func() error, error) {
	return func() error { return nil }, nil
}
