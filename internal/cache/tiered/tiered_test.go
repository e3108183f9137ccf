package tiered

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/dealmap/internal/cache"
	"github.com/mohammed-shakir/dealmap/internal/cache/redisstore"
)

var _ cache.Interface = (*Store)(nil)

func newBackend(t *testing.T) (*redisstore.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rc, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("redisstore: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestStore_BackendHitPopulatesLocal(t *testing.T) {
	rc, mr := newBackend(t)
	ctx := context.Background()
	if err := mr.Set("k", "v"); err != nil {
		t.Fatal(err)
	}

	s := New(8, time.Minute, rc)
	got, err := s.MGet(ctx, []string{"k", "absent"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if string(got["k"]) != "v" || len(got) != 1 {
		t.Fatalf("got=%v", got)
	}
	if s.LocalLen() != 1 {
		t.Fatalf("local len=%d want 1", s.LocalLen())
	}

	mr.Del("k")
	got, err = s.MGet(ctx, []string{"k"})
	if err != nil || string(got["k"]) != "v" {
		t.Fatalf("expected local hit; got=%v err=%v", got, err)
	}
}

func TestStore_SetWritesBothTiers(t *testing.T) {
	rc, mr := newBackend(t)
	s := New(8, time.Minute, rc)
	if err := s.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := mr.Get("k"); err != nil || v != "v" {
		t.Fatalf("backend value=%q err=%v", v, err)
	}
	if s.LocalLen() != 1 {
		t.Fatal("local tier not populated")
	}
}

func TestStore_DelClearsBothTiers(t *testing.T) {
	rc, mr := newBackend(t)
	ctx := context.Background()
	s := New(8, time.Minute, rc)
	_ = s.Set(ctx, "a", []byte("1"), time.Minute)
	_ = s.Set(ctx, "b", []byte("2"), time.Minute)

	if err := s.Del(ctx, "a"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if mr.Exists("a") {
		t.Fatal("backend still has a")
	}
	got, _ := s.MGet(ctx, []string{"a", "b"})
	if _, ok := got["a"]; ok {
		t.Fatal("a must be gone")
	}
	if string(got["b"]) != "2" {
		t.Fatal("b must survive")
	}
}

func TestStore_LocalOnlyAndExpiry(t *testing.T) {
	s := New(2, 30*time.Millisecond, nil)
	ctx := context.Background()
	_ = s.Set(ctx, "k", []byte("v"), 0)
	if got, _ := s.MGet(ctx, []string{"k"}); string(got["k"]) != "v" {
		t.Fatal("expected local hit")
	}
	time.Sleep(80 * time.Millisecond)
	if got, _ := s.MGet(ctx, []string{"k"}); len(got) != 0 {
		t.Fatalf("expected expiry, got %v", got)
	}
}

func TestStore_LocalEvictsBySize(t *testing.T) {
	s := New(2, time.Minute, nil)
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		_ = s.Set(ctx, k, []byte(k), 0)
	}
	if s.LocalLen() != 2 {
		t.Fatalf("len=%d want 2", s.LocalLen())
	}
	got, _ := s.MGet(ctx, []string{"a"})
	if len(got) != 0 {
		t.Fatal("oldest entry should be evicted")
	}
}

type failing struct{}

func (failing) MGet(context.Context, []string) (map[string][]byte, error) {
	return nil, errors.New("down")
}
func (failing) Set(context.Context, string, []byte, time.Duration) error { return errors.New("down") }
func (failing) Del(context.Context, ...string) error                     { return errors.New("down") }

func TestStore_BackendErrorsKeepLocalResults(t *testing.T) {
	s := New(4, time.Minute, failing{})
	ctx := context.Background()
	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err == nil {
		t.Fatal("Set should surface backend error")
	}
	got, err := s.MGet(ctx, []string{"k", "x"})
	if err == nil {
		t.Fatal("MGet should surface backend error")
	}
	if string(got["k"]) != "v" {
		t.Fatal("local hits must be returned alongside the error")
	}
	if err := s.Del(ctx, "k"); err == nil {
		t.Fatal("Del should surface backend error")
	}
	if s.LocalLen() != 0 {
		t.Fatal("local entry must be dropped even when backend fails")
	}
}
