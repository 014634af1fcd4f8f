package filedrop

import (
	"fmt"
	"io"
	"net"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// RemoteFile describes one file visible in the drop directory.
type RemoteFile struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// RemoteFS is the narrow surface the connector needs from the drop
// server. Tests substitute an in-memory implementation.
type RemoteFS interface {
	List(dir string) ([]RemoteFile, error)
	Fetch(filePath string) ([]byte, error)
	Move(oldPath, newPath string) error
	Close() error
}

// SFTPConfig holds connection settings for the drop server.
type SFTPConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	ConnectTimeout time.Duration
}

type sftpFS struct {
	sshConn *ssh.Client
	client  *sftp.Client
}

// DialSFTP connects to the drop server and returns a RemoteFS over SFTP.
func DialSFTP(cfg SFTPConfig) (RemoteFS, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	sshCfg := &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(cfg.Password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	sshConn, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to drop server %s: %w", cfg.Host, err)
	}

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		sshConn.Close()
		return nil, fmt.Errorf("failed to open sftp session: %w", err)
	}

	return &sftpFS{sshConn: sshConn, client: client}, nil
}

func (f *sftpFS) List(dir string) ([]RemoteFile, error) {
	entries, err := f.client.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	files := make([]RemoteFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, RemoteFile{
			Name:    e.Name(),
			Size:    e.Size(),
			ModTime: e.ModTime(),
		})
	}
	return files, nil
}

func (f *sftpFS) Fetch(filePath string) ([]byte, error) {
	file, err := f.client.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	return data, nil
}

func (f *sftpFS) Move(oldPath, newPath string) error {
	if err := f.client.MkdirAll(path.Dir(newPath)); err != nil {
		return fmt.Errorf("failed to create %s: %w", path.Dir(newPath), err)
	}
	if err := f.client.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", oldPath, newPath, err)
	}
	return nil
}

func (f *sftpFS) Close() error {
	if f.client != nil {
		f.client.Close()
	}
	if f.sshConn != nil {
		return f.sshConn.Close()
	}
	return nil
}
