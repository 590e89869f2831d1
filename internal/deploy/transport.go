package deploy

import (
	"context"
	"io"
)

// RemoteFS is the slice of remote filesystem operations the deployer needs.
// The production implementation runs over SFTP; tests substitute a local
// directory.
type RemoteFS interface {
	// MkdirAll creates the remote directory hierarchy.
	MkdirAll(path string) error

	// Create opens a remote file for writing, truncating any existing file.
	Create(path string) (io.WriteCloser, error)

	// PosixRename atomically replaces newpath with oldpath in one remote
	// filesystem operation.
	PosixRename(oldpath, newpath string) error

	// Remove deletes a remote file. Used only for temporary-path cleanup.
	Remove(path string) error

	// Close releases the connection.
	Close() error
}

// Dialer establishes a connection to the remote host.
type Dialer interface {
	Dial(ctx context.Context) (RemoteFS, error)
}
