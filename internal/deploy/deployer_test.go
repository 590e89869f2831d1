package deploy

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"crossdeploy/internal/domain"
	"crossdeploy/internal/errdefs"
)

// localFS implements RemoteFS on a local directory, with failure injection.
type localFS struct {
	root        string
	failRename  bool
	failAfter   int64 // truncate writes after this many bytes, -1 = no limit
	renameCalls int
}

func (l *localFS) resolve(p string) string {
	return filepath.Join(l.root, filepath.FromSlash(p))
}

func (l *localFS) MkdirAll(p string) error {
	return os.MkdirAll(l.resolve(p), 0o755)
}

func (l *localFS) Create(p string) (io.WriteCloser, error) {
	f, err := os.Create(l.resolve(p))
	if err != nil {
		return nil, err
	}
	if l.failAfter >= 0 {
		return &truncatingWriter{f: f, remaining: l.failAfter}, nil
	}
	return f, nil
}

func (l *localFS) PosixRename(oldpath, newpath string) error {
	l.renameCalls++
	if l.failRename {
		return os.ErrPermission
	}
	return os.Rename(l.resolve(oldpath), l.resolve(newpath))
}

func (l *localFS) Remove(p string) error {
	return os.Remove(l.resolve(p))
}

func (l *localFS) Close() error { return nil }

// truncatingWriter fails once the limit is reached, simulating a
// connection that died mid-transfer.
type truncatingWriter struct {
	f         *os.File
	remaining int64
}

func (w *truncatingWriter) Write(p []byte) (int, error) {
	n := int64(len(p))
	if n > w.remaining {
		n = w.remaining
	}
	if n > 0 {
		if _, err := w.f.Write(p[:n]); err != nil {
			return 0, err
		}
		w.remaining -= n
	}
	if int(n) < len(p) {
		return int(n), io.ErrUnexpectedEOF
	}
	return len(p), nil
}

func (w *truncatingWriter) Close() error { return w.f.Close() }

// fakeDialer hands out a shared localFS, optionally failing the first
// dials with a connection error.
type fakeDialer struct {
	fs        *localFS
	failDials int
	dials     int
}

func (d *fakeDialer) Dial(ctx context.Context) (RemoteFS, error) {
	d.dials++
	if d.dials <= d.failDials {
		return nil, errdefs.New(errdefs.CodeConnection, "dial tcp: connection refused")
	}
	return d.fs, nil
}

func testArtifact(t *testing.T, content []byte) domain.Artifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app")
	if err := os.WriteFile(path, content, 0o755); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return domain.Artifact{
		LocalPath: path,
		SizeBytes: uint64(len(content)),
		Triple:    "armv7-unknown-linux-gnueabihf",
	}
}

func testTarget() domain.TargetSpec {
	return domain.TargetSpec{
		Name:             "pi4",
		Triple:           "armv7-unknown-linux-gnueabihf",
		ToolchainPackage: "gcc-arm-linux-gnueabihf",
		Host: domain.HostProfile{
			Address:    "pi.local:22",
			RemotePath: "/opt/app/main",
			Auth:       "key",
		},
	}
}

func remoteContent(t *testing.T, fs *localFS, p string) []byte {
	t.Helper()
	data, err := os.ReadFile(fs.resolve(p))
	if err != nil {
		t.Fatalf("read remote file: %v", err)
	}
	return data
}

func TestDeploySuccess(t *testing.T) {
	fs := &localFS{root: t.TempDir(), failAfter: -1}
	d := New(&fakeDialer{fs: fs}, 0)
	artifact := testArtifact(t, []byte("firmware-v1"))

	result, err := d.Deploy(context.Background(), artifact, testTarget())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Success {
		t.Error("expected success")
	}
	if result.RemotePath != "/opt/app/main" {
		t.Errorf("remote path = %q", result.RemotePath)
	}
	if result.BytesTransferred != artifact.SizeBytes {
		t.Errorf("bytes = %d, want %d", result.BytesTransferred, artifact.SizeBytes)
	}
	if got := remoteContent(t, fs, "/opt/app/main"); string(got) != "firmware-v1" {
		t.Errorf("remote content = %q", got)
	}
}

func TestDeployOverwritesPrevious(t *testing.T) {
	fs := &localFS{root: t.TempDir(), failAfter: -1}
	d := New(&fakeDialer{fs: fs}, 0)
	target := testTarget()

	if _, err := d.Deploy(context.Background(), testArtifact(t, []byte("version-A")), target); err != nil {
		t.Fatalf("deploy A: %v", err)
	}
	if _, err := d.Deploy(context.Background(), testArtifact(t, []byte("version-B-longer")), target); err != nil {
		t.Fatalf("deploy B: %v", err)
	}

	// Exactly B's bytes, no residue of A.
	if got := remoteContent(t, fs, "/opt/app/main"); string(got) != "version-B-longer" {
		t.Errorf("remote content = %q, want version-B-longer", got)
	}
}

func TestDeployRejectsTripleMismatch(t *testing.T) {
	fs := &localFS{root: t.TempDir(), failAfter: -1}
	d := New(&fakeDialer{fs: fs}, 0)

	artifact := testArtifact(t, []byte("x"))
	artifact.Triple = "aarch64-unknown-linux-gnu"

	_, err := d.Deploy(context.Background(), artifact, testTarget())
	if !errdefs.IsCode(err, errdefs.CodeTripleMismatch) {
		t.Errorf("code = %s, want %s", errdefs.CodeOf(err), errdefs.CodeTripleMismatch)
	}
}

func TestDeployRetriesConnectionErrors(t *testing.T) {
	fs := &localFS{root: t.TempDir(), failAfter: -1}
	dialer := &fakeDialer{fs: fs, failDials: 2}
	d := New(dialer, 3)

	result, err := d.Deploy(context.Background(), testArtifact(t, []byte("firmware")), testTarget())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("expected success after retries")
	}
	if dialer.dials != 3 {
		t.Errorf("dials = %d, want 3", dialer.dials)
	}
}

func TestDeployExhaustedRetries(t *testing.T) {
	fs := &localFS{root: t.TempDir(), failAfter: -1}
	dialer := &fakeDialer{fs: fs, failDials: 10}
	d := New(dialer, 1)

	_, err := d.Deploy(context.Background(), testArtifact(t, []byte("firmware")), testTarget())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errdefs.IsCode(err, errdefs.CodeConnection) {
		t.Errorf("code = %s, want %s", errdefs.CodeOf(err), errdefs.CodeConnection)
	}
	if dialer.dials != 2 {
		t.Errorf("dials = %d, want 2 (initial + 1 retry)", dialer.dials)
	}
}

func TestDeployShortTransferLeavesPreviousUntouched(t *testing.T) {
	fs := &localFS{root: t.TempDir(), failAfter: -1}
	d := New(&fakeDialer{fs: fs}, 0)
	target := testTarget()

	if _, err := d.Deploy(context.Background(), testArtifact(t, []byte("version-A")), target); err != nil {
		t.Fatalf("deploy A: %v", err)
	}

	// Second deploy drops bytes mid-transfer.
	fs.failAfter = 4
	_, err := d.Deploy(context.Background(), testArtifact(t, []byte("version-B")), target)
	if err == nil {
		t.Fatal("expected transfer error")
	}
	if !errdefs.IsCode(err, errdefs.CodeTransfer) {
		t.Errorf("code = %s, want %s", errdefs.CodeOf(err), errdefs.CodeTransfer)
	}

	// Atomicity: the live path still holds A, byte for byte.
	if got := remoteContent(t, fs, "/opt/app/main"); string(got) != "version-A" {
		t.Errorf("remote content = %q, want version-A preserved", got)
	}
}

func TestDeployRenameFailureIsFatal(t *testing.T) {
	fs := &localFS{root: t.TempDir(), failAfter: -1}
	d := New(&fakeDialer{fs: fs}, 5)
	target := testTarget()

	if _, err := d.Deploy(context.Background(), testArtifact(t, []byte("version-A")), target); err != nil {
		t.Fatalf("deploy A: %v", err)
	}

	fs.failRename = true
	fs.renameCalls = 0
	_, err := d.Deploy(context.Background(), testArtifact(t, []byte("version-B")), target)
	if err == nil {
		t.Fatal("expected rename error")
	}
	if !errdefs.IsCode(err, errdefs.CodeRemoteWrite) {
		t.Errorf("code = %s, want %s", errdefs.CodeOf(err), errdefs.CodeRemoteWrite)
	}

	// Never retried, previous deployment intact.
	if fs.renameCalls != 1 {
		t.Errorf("rename attempted %d times, want 1", fs.renameCalls)
	}
	if got := remoteContent(t, fs, "/opt/app/main"); string(got) != "version-A" {
		t.Errorf("remote content = %q, want version-A preserved", got)
	}
}

func TestDeployCancelledBeforeRename(t *testing.T) {
	fs := &localFS{root: t.TempDir(), failAfter: -1}
	d := New(&fakeDialer{fs: fs}, 0)
	target := testTarget()

	if _, err := d.Deploy(context.Background(), testArtifact(t, []byte("version-A")), target); err != nil {
		t.Fatalf("deploy A: %v", err)
	}

	// Cancel after upload completes: Deploy observes it before the rename.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Deploy(ctx, testArtifact(t, []byte("version-B")), target)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if got := remoteContent(t, fs, "/opt/app/main"); string(got) != "version-A" {
		t.Errorf("remote content = %q, want version-A preserved", got)
	}
}
