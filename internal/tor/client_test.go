package tor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("accepts host:port", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient("127.0.0.1:9050", 30*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("proxy address = %q", client.ProxyAddress())
		}
		if client.ProxyURL() != "socks5://127.0.0.1:9050" {
			t.Errorf("proxy url = %q", client.ProxyURL())
		}
	})

	t.Run("rejects malformed address", func(t *testing.T) {
		t.Parallel()

		if _, err := NewClient("localhost", time.Second); !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})
}

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		address string
		want    bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:9150", true},
		{"tor:1", true},
		{"127.0.0.1", false},
		{":9050", false},
		{"127.0.0.1:", false},
		{"127.0.0.1:0", false},
		{"127.0.0.1:65536", false},
		{"127.0.0.1:abc", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			t.Parallel()
			if got := IsValidProxyAddress(tt.address); got != tt.want {
				t.Errorf("IsValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestHTTPClient(t *testing.T) {
	t.Parallel()

	client, err := NewClient("127.0.0.1:9050", 45*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	hc := client.HTTPClient()
	if hc.Timeout != 45*time.Second {
		t.Errorf("timeout = %v", hc.Timeout)
	}
	if hc.Jar == nil {
		t.Error("expected a cookie jar")
	}
	transport, ok := hc.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("unexpected transport %T", hc.Transport)
	}
	if !transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("certificate verification must be off for hidden services")
	}

	via := make([]*http.Request, maxRedirects)
	if err := hc.CheckRedirect(nil, via); !errors.Is(err, http.ErrUseLastResponse) {
		t.Errorf("redirect %d must stop, got %v", maxRedirects, err)
	}
	if err := hc.CheckRedirect(nil, via[:3]); err != nil {
		t.Errorf("redirect 3 must be followed, got %v", err)
	}
}

// fakeProxy accepts one connection and answers the greeting and the
// CONNECT request with the given bytes. A nil reply closes the connection.
func fakeProxy(t *testing.T, greeting, connect []byte) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 256)
		_, _ = conn.Read(buf)
		if greeting == nil {
			return
		}
		_, _ = conn.Write(greeting)
		_, _ = conn.Read(buf)
		if connect != nil {
			_, _ = conn.Write(connect)
		}
	}()
	return listener.Addr().String()
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		greeting []byte
		connect  []byte
		want     ProxyStatus
	}{
		{"tor answers host unreachable", []byte{0x05, 0x00}, []byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0}, ProxyStatusOK},
		{"http server", []byte("HTTP/1.1 200 OK\r\n\r\n"), nil, ProxyStatusWrongType},
		{"proxy requires auth", []byte{0x05, 0xFF}, nil, ProxyStatusWrongType},
		{"wrong version on connect", []byte{0x05, 0x00}, []byte{0x04, 0x00, 0x00, 0x01}, ProxyStatusWrongType},
		{"closes after greeting", nil, nil, ProxyStatusWrongType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := NewClient(fakeProxy(t, tt.greeting, tt.connect), time.Second)
			if err != nil {
				t.Fatal(err)
			}
			if got := client.CheckConnection(context.Background()); got != tt.want {
				t.Errorf("status = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("closed port", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatal(err)
		}
		addr := listener.Addr().String()
		_ = listener.Close()

		client, err := NewClient(addr, time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if got := client.CheckConnection(context.Background()); got != ProxyStatusCannotConnect {
			t.Errorf("status = %v, want cannot connect", got)
		}
	})
}

func TestProxyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status ProxyStatus
		text   string
		err    error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not Tor)", ErrProxyNotTor},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			if tt.status.String() != tt.text {
				t.Errorf("String() = %q", tt.status.String())
			}
			if !errors.Is(tt.status.Error(), tt.err) {
				t.Errorf("Error() = %v, want %v", tt.status.Error(), tt.err)
			}
		})
	}

	if ProxyStatus(99).Error() == nil || ProxyStatus(99).String() != "unknown" {
		t.Error("unknown status must report an error")
	}
}
