// Package deploy transfers a verified artifact to its remote host.
//
// The transfer protocol is upload-then-rename: bytes land at a temporary
// remote path, the transferred byte count is checked against the local size,
// and only then is the temporary file renamed onto the final path in one
// atomic remote filesystem operation. A failure or cancellation at any point
// before the rename leaves the previous deployment untouched.
//
// Transient connection and transfer errors are retried with bounded
// exponential backoff. A rename failure is surfaced immediately and never
// retried: it indicates a remote-side condition (permissions, disk full)
// that retrying blindly will not fix.
package deploy

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"time"

	"github.com/cenkalti/backoff/v4"

	"crossdeploy/internal/domain"
	"crossdeploy/internal/errdefs"
)

// Deployer uploads artifacts over a Dialer-provided remote filesystem.
type Deployer struct {
	dialer  Dialer
	retries uint64 // max additional connection/transfer attempts
}

// New creates a deployer. retries bounds the backoff attempts for
// transient errors; 0 disables retrying.
func New(dialer Dialer, retries int) *Deployer {
	if retries < 0 {
		retries = 0
	}
	return &Deployer{dialer: dialer, retries: uint64(retries)}
}

// Deploy transfers the artifact to the host's remote path. The artifact
// must have been built for the given spec's triple; a mismatch is a hard
// verification failure, never silently ignored.
func (d *Deployer) Deploy(ctx context.Context, artifact domain.Artifact, spec domain.TargetSpec) (*domain.DeployResult, error) {
	if !artifact.MatchesTarget(spec) {
		return nil, errdefs.New(errdefs.CodeTripleMismatch,
			"artifact triple %s does not match target %s (%s)", artifact.Triple, spec.Name, spec.Triple)
	}

	finalPath := spec.Host.RemotePath
	tmpPath := temporaryPath(finalPath)

	var (
		remote      RemoteFS
		transferred uint64
	)

	// Connection and upload are the retryable portion. The rename below
	// runs once, outside the retry loop.
	upload := func() error {
		var err error
		remote, err = d.dialer.Dial(ctx)
		if err != nil {
			if errdefs.Retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		transferred, err = d.uploadTemp(artifact, remote, tmpPath)
		if err != nil {
			remote.Close()
			remote = nil
			if errdefs.Retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	schedule := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), d.retries), ctx)
	if err := backoff.Retry(upload, schedule); err != nil {
		return nil, fmt.Errorf("upload to %s: %w", spec.Host.Address, err)
	}
	defer remote.Close()

	// Cancellation is observed here, before the rename and never during
	// it, so the live remote path is never left inconsistent.
	select {
	case <-ctx.Done():
		d.cleanupTemp(remote, tmpPath)
		return nil, fmt.Errorf("deploy to %s cancelled before rename: %w", spec.Host.Address, ctx.Err())
	default:
	}

	if err := remote.PosixRename(tmpPath, finalPath); err != nil {
		d.cleanupTemp(remote, tmpPath)
		return nil, errdefs.Wrap(err, errdefs.CodeRemoteWrite,
			"rename %s to %s on %s", tmpPath, finalPath, spec.Host.Address)
	}

	log.Printf("Deployed %s to %s:%s (%d bytes)", artifact.LocalPath, spec.Host.Address, finalPath, transferred)
	return &domain.DeployResult{
		Success:          true,
		RemotePath:       finalPath,
		BytesTransferred: transferred,
	}, nil
}

// uploadTemp writes the artifact bytes to the temporary remote path and
// verifies the transferred count equals the local size.
func (d *Deployer) uploadTemp(artifact domain.Artifact, remote RemoteFS, tmpPath string) (uint64, error) {
	local, err := os.Open(artifact.LocalPath)
	if err != nil {
		return 0, errdefs.Wrap(err, errdefs.CodeIO, "open artifact %s", artifact.LocalPath)
	}
	defer local.Close()

	if err := remote.MkdirAll(path.Dir(tmpPath)); err != nil {
		return 0, errdefs.Wrap(err, errdefs.CodeTransfer, "create remote dir %s", path.Dir(tmpPath))
	}

	dst, err := remote.Create(tmpPath)
	if err != nil {
		return 0, errdefs.Wrap(err, errdefs.CodeTransfer, "create %s", tmpPath)
	}

	n, copyErr := io.Copy(dst, local)
	closeErr := dst.Close()

	if copyErr != nil {
		d.cleanupTemp(remote, tmpPath)
		return 0, errdefs.Wrap(copyErr, errdefs.CodeTransfer, "write %s after %d bytes", tmpPath, n)
	}
	if closeErr != nil {
		d.cleanupTemp(remote, tmpPath)
		return 0, errdefs.Wrap(closeErr, errdefs.CodeTransfer, "flush %s", tmpPath)
	}
	if uint64(n) != artifact.SizeBytes {
		d.cleanupTemp(remote, tmpPath)
		return 0, errdefs.New(errdefs.CodeTransfer,
			"transferred %d bytes, artifact is %d bytes", n, artifact.SizeBytes)
	}
	return uint64(n), nil
}

// cleanupTemp removes a temporary upload. Best effort: the file is inert
// either way and a later run overwrites it.
func (d *Deployer) cleanupTemp(remote RemoteFS, tmpPath string) {
	if err := remote.Remove(tmpPath); err != nil {
		log.Printf("Failed to remove temporary upload %s: %v", tmpPath, err)
	}
}

// temporaryPath derives the upload path next to the final one, on the same
// filesystem so the rename is atomic.
func temporaryPath(finalPath string) string {
	dir, base := path.Split(finalPath)
	return path.Join(dir, fmt.Sprintf(".%s.partial-%d-%d", base, os.Getpid(), time.Now().UnixNano()))
}
