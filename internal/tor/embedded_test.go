package tor

import (
	"errors"
	"testing"
	"time"
)

func TestEmbeddedTorNotStarted(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor()
		if e.startupTimeout != DefaultStartupTimeout {
			t.Errorf("startup timeout = %v", e.startupTimeout)
		}
		if e.IsRunning() || e.SocksAddr() != "" {
			t.Error("a new daemon must not be running")
		}
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()

		e := NewEmbeddedTor(WithStartupTimeout(5 * time.Minute))
		if e.startupTimeout != 5*time.Minute {
			t.Errorf("startup timeout = %v", e.startupTimeout)
		}
	})

	t.Run("client requires a running daemon", func(t *testing.T) {
		t.Parallel()

		if _, err := NewEmbeddedTor().NewClient(time.Second); !errors.Is(err, ErrEmbeddedNotRunning) {
			t.Errorf("expected ErrEmbeddedNotRunning, got %v", err)
		}
	})

	t.Run("stop is a no-op", func(t *testing.T) {
		t.Parallel()

		if err := NewEmbeddedTor().Stop(); err != nil {
			t.Errorf("Stop() = %v", err)
		}
	})
}
