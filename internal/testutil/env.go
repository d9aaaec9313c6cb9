// Package testutil has fixtures for tests that run a real rapor server
// or feed documents through the pipeline.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jackzampolin/rapor/internal/preprocess"
)

// ServerConfig is where a test server should listen. It is a plain
// struct so that this package does not import the server.
type ServerConfig struct {
	Host    string
	Port    string
	HomeDir string
	Logger  *slog.Logger
}

// NewServerConfig picks a free loopback port and a temporary home.
func NewServerConfig(t *testing.T) ServerConfig {
	t.Helper()
	port, err := FindFreePort()
	if err != nil {
		t.Fatalf("no free port: %v", err)
	}
	return ServerConfig{
		Host:    "127.0.0.1",
		Port:    port,
		HomeDir: t.TempDir(),
		Logger:  slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
}

// URL is the base URL of the server.
func (c ServerConfig) URL() string {
	return "http://" + net.JoinHostPort(c.Host, c.Port)
}

// FindFreePort asks the kernel for an unused TCP port.
func FindFreePort() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer ln.Close()
	return strconv.Itoa(ln.Addr().(*net.TCPAddr).Port), nil
}

// WaitForServer polls GET /ready until it answers 200, which happens once
// the OCR engines are initialized.
func WaitForServer(baseURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	client := &http.Client{Timeout: time.Second}
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/ready", nil)
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not ready within %v", baseURL, timeout)
		case <-tick.C:
		}
	}
}

// WaitForShutdown returns what Start returned, or an error after timeout.
func WaitForShutdown(done <-chan error, timeout time.Duration) error {
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return errors.New("server did not stop in time")
	}
}

// StartServer stops a server started in a goroutine:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	done := make(chan error, 1)
//	go func() { done <- srv.Start(ctx) }()
//	t.Cleanup((&testutil.StartServer{Cancel: cancel, Done: done}).Stop)
type StartServer struct {
	Cancel context.CancelFunc
	Done   <-chan error
}

// Stop cancels the server and blocks until Start returns.
func (s *StartServer) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
	if s.Done != nil {
		<-s.Done
	}
}

// BlankPNG encodes a w×h light gray page, enough for engines that
// ignore pixels such as ocr.MockEngine.
func BlankPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xe6
	}
	data, err := preprocess.EncodePNG(img)
	if err != nil {
		t.Fatalf("encode page: %v", err)
	}
	return data
}

// WriteFile writes data to dir/name, creating parents, and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}
