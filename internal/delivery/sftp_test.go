package delivery

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memClient(t *testing.T) *sftp.Client {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	server := sftp.NewRequestServer(serverConn, sftp.InMemHandler())
	go func() { _ = server.Serve() }()

	client, err := sftp.NewClientPipe(clientConn, clientConn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client
}

func TestUpload(t *testing.T) {
	client := memClient(t)

	remote, err := Upload(client, "/crm/in", "contactos_reparto_final_PN.xlsx", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, "/crm/in/contactos_reparto_final_PN.xlsx", remote)

	f, err := client.Open(remote)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestUploadFileRequiresCredentials(t *testing.T) {
	err := UploadFile(context.Background(), Config{Host: "sftp.example.com"}, "pn.xlsx", "pn.xlsx")
	assert.ErrorContains(t, err, "missing env")
}

func TestUploadFileHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := UploadFile(ctx, Config{Host: "192.0.2.1", User: "u", Pass: "p"}, "pn.xlsx", "pn.xlsx")
	require.Error(t, err)
}

type fakeConn struct{ closed chan struct{} }

func (c *fakeConn) Close() error {
	close(c.closed)
	return nil
}

func TestAwaitDialClosesLateClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan dialResult[*fakeConn], 1)
	_, err := awaitDial(ctx, ch)
	require.ErrorIs(t, err, context.Canceled)

	conn := &fakeConn{closed: make(chan struct{})}
	ch <- dialResult[*fakeConn]{client: conn}
	select {
	case <-conn.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("client dialled after cancel was not closed")
	}
}

func TestAwaitDial(t *testing.T) {
	ch := make(chan dialResult[*fakeConn], 1)
	conn := &fakeConn{closed: make(chan struct{})}
	ch <- dialResult[*fakeConn]{client: conn}
	got, err := awaitDial(context.Background(), ch)
	require.NoError(t, err)
	assert.Same(t, conn, got)

	ch <- dialResult[*fakeConn]{err: errors.New("connection refused")}
	_, err = awaitDial(context.Background(), ch)
	assert.ErrorContains(t, err, "sftp: dial error: connection refused")
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	assert.Equal(t, 22, c.Port)
	assert.Equal(t, "/", c.RemoteDir)
}
