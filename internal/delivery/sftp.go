// Package delivery uploads finished PN files to the CRM import drop over SFTP.
package delivery

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Config describes the SFTP drop.
type Config struct {
	Host      string
	Port      int
	User      string
	Pass      string
	RemoteDir string
	// KnownHosts is an OpenSSH known_hosts file; empty skips host key checking.
	KnownHosts string
}

func (c Config) withDefaults() Config {
	if c.Port <= 0 {
		c.Port = 22
	}
	if c.RemoteDir == "" {
		c.RemoteDir = "/"
	}
	return c
}

func (c Config) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if c.KnownHosts == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(c.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("sftp: known_hosts: %w", err)
	}
	return cb, nil
}

// UploadFile copies localPath to RemoteDir/remoteName on the configured server.
func UploadFile(ctx context.Context, cfg Config, localPath, remoteName string) error {
	if cfg.Host == "" || cfg.User == "" || cfg.Pass == "" {
		return fmt.Errorf("sftp: missing env SFTP_HOST / SFTP_USER / SFTP_PASS")
	}
	cfg = cfg.withDefaults()

	cb, err := cfg.hostKeyCallback()
	if err != nil {
		return err
	}
	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Pass)},
		HostKeyCallback: cb,
		Timeout:         20 * time.Second,
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	ch := make(chan dialResult[*ssh.Client], 1)
	go func() {
		c, err := ssh.Dial("tcp", addr, sshCfg)
		ch <- dialResult[*ssh.Client]{client: c, err: err}
	}()

	sshClient, err := awaitDial(ctx, ch)
	if err != nil {
		return err
	}
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("sftp: new client: %w", err)
	}
	defer client.Close()

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("sftp: open local file: %w", err)
	}
	defer src.Close()

	_, err = Upload(client, cfg.RemoteDir, remoteName, src)
	return err
}

// Upload writes r to dir/name through an established client, creating dir if needed.
// It returns the remote path written.
func Upload(client *sftp.Client, dir, name string, r io.Reader) (string, error) {
	if err := client.MkdirAll(dir); err != nil {
		return "", fmt.Errorf("sftp: mkdir %s: %w", dir, err)
	}

	remotePath := path.Join(dir, name)
	dst, err := client.Create(remotePath)
	if err != nil {
		return "", fmt.Errorf("sftp: create remote file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		return "", fmt.Errorf("sftp: upload copy: %w", err)
	}
	return remotePath, dst.Close()
}

type dialResult[C io.Closer] struct {
	client C
	err    error
}

// awaitDial waits for the dial feeding ch. If ctx ends first the dial is left to finish in
// the background and any client it produces is closed.
func awaitDial[C io.Closer](ctx context.Context, ch <-chan dialResult[C]) (C, error) {
	var zero C
	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				_ = r.client.Close()
			}
		}()
		return zero, fmt.Errorf("sftp: dial canceled: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return zero, fmt.Errorf("sftp: dial error: %w", r.err)
		}
		return r.client, nil
	}
}
