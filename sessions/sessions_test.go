package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/omniscale/mapent/cache"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	c, err := cache.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return NewStore(c)
}

func TestStoreRoundtrip(t *testing.T) {
	s := testStore(t)

	if _, found, err := s.Find("missing"); err != nil || found {
		t.Errorf("expected no session, got found=%v err=%v", found, err)
	}

	err := s.Commit("tok1", []byte("state"), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	b, found, err := s.Find("tok1")
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(b) != "state" {
		t.Errorf("unexpected session %q found=%v", b, found)
	}

	if err := s.Delete("tok1"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.Find("tok1"); found {
		t.Error("session not deleted")
	}
}

func TestStoreExpiry(t *testing.T) {
	s := testStore(t)
	err := s.Commit("tok1", []byte("state"), time.Now().Add(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.Find("tok1"); !found {
		t.Fatal("session should live until expiry")
	}
	time.Sleep(80 * time.Millisecond)
	if _, found, _ := s.Find("tok1"); found {
		t.Error("session not expired")
	}
}

func TestManager(t *testing.T) {
	c, err := cache.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	sm := Manager(c, time.Hour)
	ctx, err := sm.Load(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	sm.Put(ctx, "user", "editor")
	token, _, err := sm.Commit(ctx)
	if err != nil {
		t.Fatal(err)
	}

	ctx, err = sm.Load(context.Background(), token)
	if err != nil {
		t.Fatal(err)
	}
	if user := sm.GetString(ctx, "user"); user != "editor" {
		t.Errorf("unexpected session value %q", user)
	}
}
