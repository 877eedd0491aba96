package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	t.Run("missing key", func(t *testing.T) {
		if _, err := c.Get(ctx, "absent"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(absent) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := c.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(got) != "v" {
			t.Errorf("Get() = %q, want %q", got, "v")
		}
	})

	t.Run("delete", func(t *testing.T) {
		c.Set(ctx, "gone", []byte("x"), 0)
		if err := c.Delete(ctx, "gone"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := c.Get(ctx, "gone"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(gone) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ttl expiry", func(t *testing.T) {
		c.Set(ctx, "short", []byte("x"), time.Millisecond)
		time.Sleep(5 * time.Millisecond)
		if _, err := c.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(short) error = %v, want ErrNotFound after expiry", err)
		}
	})
}
