package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestPutGetDelete(t *testing.T) {
	c, err := OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if v, err := c.Get([]byte("missing")); err != nil || v != nil {
		t.Errorf("missing key: %v %v", v, err)
	}

	if err := c.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatal(err)
	}
	v, err := c.Get([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(v, []byte("v1")) {
		t.Errorf("%q != %q", v, "v1")
	}

	if err := c.Put([]byte("k"), []byte("v2")); err != nil {
		t.Fatal(err)
	}
	v, _ = c.Get([]byte("k"))
	if !bytes.Equal(v, []byte("v2")) {
		t.Errorf("overwrite lost: %q", v)
	}

	if err := c.Delete([]byte("k")); err != nil {
		t.Fatal(err)
	}
	if v, _ := c.Get([]byte("k")); v != nil {
		t.Errorf("deleted key returned %q", v)
	}
}

func TestPutTTL(t *testing.T) {
	c, err := OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.PutTTL([]byte("s"), []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if v, _ := c.Get([]byte("s")); v == nil {
		t.Fatal("value expired too early")
	}
	time.Sleep(80 * time.Millisecond)
	if v, _ := c.Get([]byte("s")); v != nil {
		t.Errorf("value not expired: %q", v)
	}
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir + "/cache")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = Open(dir + "/cache")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	v, err := c.Get([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(v, []byte("v")) {
		t.Errorf("value lost after reopen: %q", v)
	}
}
