package activitylog

import (
	"io"
	"io/fs"
	"os"
)

// File is an open log file
type File interface {
	io.ReadWriteCloser
	Fd() uintptr
}

// FileSystem is the subset of the OS the store touches. Tests wrap it to
// count file opens.
type FileSystem interface {
	MkdirAll(path string, perm fs.FileMode) error
	OpenFile(name string, flag int, perm fs.FileMode) (File, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	Stat(name string) (fs.FileInfo, error)
	Remove(name string) error
	RemoveAll(path string) error
}

// OSFileSystem is the FileSystem backed by package os
type OSFileSystem struct{}

var _ FileSystem = OSFileSystem{}

func (OSFileSystem) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }

func (OSFileSystem) OpenFile(name string, flag int, perm fs.FileMode) (File, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }
func (OSFileSystem) Stat(name string) (fs.FileInfo, error)      { return os.Stat(name) }
func (OSFileSystem) Remove(name string) error                   { return os.Remove(name) }
func (OSFileSystem) RemoveAll(path string) error                { return os.RemoveAll(path) }
