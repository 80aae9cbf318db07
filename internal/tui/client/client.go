package client

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matheus3301/bossmsg/internal/rpc"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	*rpc.Client
	conn *grpc.ClientConn
}

// New dials the daemon's Unix domain socket and returns the typed client.
func New(socketPath string) (*Client, error) {
	conn, err := rpc.Dial(socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{Client: rpc.NewClient(conn), conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Probe checks if a daemon is running and serving on the socket.
func Probe(socketPath string) bool {
	c, err := New(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	st, err := c.Health(ctx)
	return err == nil && st == grpc_health_v1.HealthCheckResponse_SERVING
}

// StartDaemon launches bossd for the session, preferring the binary next to
// the running executable.
func StartDaemon(sessionName string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	bossd := filepath.Join(filepath.Dir(executable), "bossd")
	if _, err := os.Stat(bossd); err != nil {
		bossd = "bossd"
	}

	cmd := exec.Command(bossd, "--session", sessionName)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

// WaitReady polls the daemon health check until it serves or timeout passes.
func WaitReady(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if Probe(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}

// Ensure probes the daemon and starts it when nothing answers.
func Ensure(sessionName, socketPath string, timeout time.Duration) error {
	if Probe(socketPath) {
		return nil
	}
	if err := StartDaemon(sessionName); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if !WaitReady(socketPath, timeout) {
		return fmt.Errorf("daemon for session %q did not become ready", sessionName)
	}
	return nil
}
