package deploy

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"crossdeploy/internal/domain"
	"crossdeploy/internal/errdefs"
)

// SSHDialer connects to a host over SSH and exposes its filesystem via SFTP.
// Supports both key-based and password authentication.
type SSHDialer struct {
	host    domain.HostProfile
	cred    domain.Credential
	timeout time.Duration
}

// NewSSHDialer creates a dialer for a host profile with a resolved credential.
func NewSSHDialer(host domain.HostProfile, cred domain.Credential, timeout time.Duration) *SSHDialer {
	return &SSHDialer{host: host, cred: cred, timeout: timeout}
}

// Dial establishes the SSH connection and opens an SFTP session on it.
func (d *SSHDialer) Dial(ctx context.Context) (RemoteFS, error) {
	config, err := d.buildSSHConfig()
	if err != nil {
		return nil, err
	}

	addr := d.host.Address
	if !strings.Contains(addr, ":") {
		addr = net.JoinHostPort(addr, "22")
	}

	dialer := &net.Dialer{Timeout: d.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errdefs.Wrap(err, errdefs.CodeConnection, "dial %s", addr)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, errdefs.Wrap(err, errdefs.CodeConnection, "ssh handshake with %s", addr)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, errdefs.Wrap(err, errdefs.CodeConnection, "open sftp session on %s", addr)
	}

	return &sftpFS{sftp: sftpClient, ssh: client}, nil
}

// buildSSHConfig creates an SSH client config from the credential.
func (d *SSHDialer) buildSSHConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	switch {
	case d.cred.PrivateKeyPath != "":
		keyData, err := os.ReadFile(d.cred.PrivateKeyPath)
		if err != nil {
			return nil, errdefs.Wrap(err, errdefs.CodeInvalidConfig, "read private key %s", d.cred.PrivateKeyPath)
		}

		var signer ssh.Signer
		if d.cred.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(d.cred.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyData)
		}
		if err != nil {
			return nil, errdefs.Wrap(err, errdefs.CodeInvalidConfig, "parse private key %s", d.cred.PrivateKeyPath)
		}
		auth = append(auth, ssh.PublicKeys(signer))

	case d.cred.Password != "":
		auth = append(auth, ssh.Password(d.cred.Password))

	default:
		return nil, errdefs.New(errdefs.CodeInvalidConfig, "credential has no usable auth method")
	}

	return &ssh.ClientConfig{
		User:            d.cred.Username,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         d.timeout,
	}, nil
}

// sftpFS adapts an SFTP session to the RemoteFS interface.
type sftpFS struct {
	sftp *sftp.Client
	ssh  *ssh.Client
}

func (f *sftpFS) MkdirAll(path string) error {
	return f.sftp.MkdirAll(path)
}

func (f *sftpFS) Create(path string) (io.WriteCloser, error) {
	file, err := f.sftp.Create(path)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (f *sftpFS) PosixRename(oldpath, newpath string) error {
	return f.sftp.PosixRename(oldpath, newpath)
}

func (f *sftpFS) Remove(path string) error {
	return f.sftp.Remove(path)
}

func (f *sftpFS) Close() error {
	sftpErr := f.sftp.Close()
	sshErr := f.ssh.Close()
	if sftpErr != nil {
		return fmt.Errorf("close sftp: %w", sftpErr)
	}
	return sshErr
}
