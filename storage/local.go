package storage

import (
	"os"
	"path/filepath"
)

// Local is the filesystem backend. File permissions follow the process
// umask from a 0666/0777 base.
type Local struct {
	perm os.FileMode
}

var _ Backend = (*Local)(nil)

// NewLocal creates a filesystem backend.
func NewLocal() *Local {
	return &Local{perm: 0o666}
}

func (l *Local) MkdirAll(path string) error {
	return WrapErr("mkdir", path, os.MkdirAll(path, 0o777))
}

func (l *Local) Write(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, l.perm)
	if err != nil {
		return WrapErr("write", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return WrapErr("write", path, err)
	}

	return WrapErr("write", path, f.Close())
}

func (l *Local) Append(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, l.perm)
	if err != nil {
		return WrapErr("append", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return WrapErr("append", path, err)
	}

	return WrapErr("append", path, f.Close())
}

func (l *Local) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotExist
	}

	return data, WrapErr("read", path, err)
}

func (l *Local) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, WrapErr("stat", path, err)
	}

	return true, nil
}

func (l *Local) List(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, WrapErr("list", path, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}

	return names, nil
}

func (l *Local) Remove(path string) error {
	return WrapErr("remove", path, os.Remove(path))
}

func (l *Local) RemoveAll(path string) error {
	return WrapErr("remove", path, os.RemoveAll(path))
}

func (l *Local) Rename(oldPath, newPath string) error {
	return WrapErr("rename", oldPath, os.Rename(oldPath, newPath))
}

func (l *Local) Sync(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return WrapErr("sync", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return WrapErr("sync", path, err)
	}

	return WrapErr("sync", path, f.Close())
}

func (l *Local) SyncDir(path string) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return WrapErr("syncdir", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return WrapErr("syncdir", path, err)
	}

	return WrapErr("syncdir", path, f.Close())
}
