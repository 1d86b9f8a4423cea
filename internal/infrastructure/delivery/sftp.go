// Package delivery hands rendered feed files to the AP dropbox over SFTP.
package delivery

import (
	"context"
	"fmt"
	"net"
	"path"
	"time"

	"github.com/libops/sapinvoices/internal/domain/shared"
	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// Config holds the SFTP connection settings
type Config struct {
	Host           string
	Port           string
	User           string
	PrivateKeyPEM  []byte
	RemoteDir      string
	ConnectTimeout time.Duration
	// HostKey pins the server key; empty skips verification, which is only
	// acceptable against the AP test dropbox
	HostKey []byte
}

// SFTPDelivery uploads files with a temporary name and renames them into
// place, so the AP sweep job never picks up a partial file.
type SFTPDelivery struct {
	config    Config
	signer    ssh.Signer
	hostKeyCb ssh.HostKeyCallback
	logger    *zap.Logger
}

// NewSFTPDelivery parses the private key and prepares a delivery client.
// No connection is made until Send.
func NewSFTPDelivery(config Config, logger *zap.Logger) (*SFTPDelivery, error) {
	if config.Host == "" || config.User == "" {
		return nil, fmt.Errorf("sftp host and user are required")
	}
	if config.Port == "" {
		config.Port = "22"
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	signer, err := ssh.ParsePrivateKey(config.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing sftp private key: %w", err)
	}

	hostKeyCb := ssh.InsecureIgnoreHostKey()
	if len(config.HostKey) > 0 {
		hostKey, _, _, _, err := ssh.ParseAuthorizedKey(config.HostKey)
		if err != nil {
			return nil, fmt.Errorf("parsing sftp host key: %w", err)
		}
		hostKeyCb = ssh.FixedHostKey(hostKey)
	}

	return &SFTPDelivery{
		config:    config,
		signer:    signer,
		hostKeyCb: hostKeyCb,
		logger:    logger,
	}, nil
}

// Send uploads one file to the remote directory. A fresh connection per file
// keeps a dead connection from one send out of the next.
func (d *SFTPDelivery) Send(ctx context.Context, fileName string, content []byte) error {
	client, sshConn, err := d.connect(ctx)
	if err != nil {
		return err
	}
	defer sshConn.Close()
	defer client.Close()

	remotePath := path.Join(d.config.RemoteDir, fileName)
	tempPath := remotePath + ".part"

	remote, err := client.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tempPath, err)
	}
	if _, err := remote.Write(content); err != nil {
		remote.Close()
		return fmt.Errorf("writing %s: %w", tempPath, err)
	}
	if err := remote.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tempPath, err)
	}
	if err := client.PosixRename(tempPath, remotePath); err != nil {
		return fmt.Errorf("renaming %s into place: %w", tempPath, err)
	}

	d.logger.Info("delivered file",
		zap.String("file", fileName),
		zap.Int("bytes", len(content)),
		zap.String("host", d.config.Host))
	return nil
}

func (d *SFTPDelivery) connect(ctx context.Context) (*sftp.Client, ssh.Conn, error) {
	addr := net.JoinHostPort(d.config.Host, d.config.Port)
	dialer := net.Dialer{Timeout: d.config.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("dialing %s: %w: %w", addr, err, shared.ErrTransientDeliver)
	}

	sshConfig := &ssh.ClientConfig{
		User:            d.config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(d.signer)},
		HostKeyCallback: d.hostKeyCb,
		Timeout:         d.config.ConnectTimeout,
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client, err := sftp.NewClient(ssh.NewClient(sshConn, chans, reqs))
	if err != nil {
		sshConn.Close()
		return nil, nil, fmt.Errorf("opening sftp session: %w", err)
	}
	return client, sshConn, nil
}
