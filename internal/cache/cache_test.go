package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStoreThenLookupHit(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	payload := []byte(`{"functions":[{"qualname":"pkg.util.greet"}]}`)
	c.Store("pkg/util.py", "1000:50", HashStat, payload)

	got, ok := c.Lookup("pkg/util.py", "1000:50", HashStat)
	if !ok {
		t.Fatal("Lookup miss, want hit")
	}
	if string(got) != string(payload) {
		t.Fatalf("payload = %s, want %s", got, payload)
	}
}

func TestLookupMissOnFingerprintChange(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	c.Store("pkg/util.py", "1000:50", HashStat, []byte(`{}`))

	if _, ok := c.Lookup("pkg/util.py", "2000:60", HashStat); ok {
		t.Fatal("Lookup hit on changed fingerprint, want miss")
	}
}

func TestLookupMissOnHashModeMismatch(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	c.Store("pkg/util.py", "abc123", HashSHA1, []byte(`{}`))

	if _, ok := c.Lookup("pkg/util.py", "abc123", HashStat); ok {
		t.Fatal("Lookup hit across incompatible hash modes, want miss")
	}
}

func TestPruneRemovesStaleEntries(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	c.Store("a.py", "1:1", HashStat, []byte(`{}`))
	c.Store("b.py", "1:1", HashStat, []byte(`{}`))

	n, err := c.Prune(map[string]bool{"a.py": true})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Prune removed %d, want 1", n)
	}
	if _, ok := c.Lookup("b.py", "1:1", HashStat); ok {
		t.Fatal("b.py survived prune")
	}
	if _, ok := c.Lookup("a.py", "1:1", HashStat); !ok {
		t.Fatal("a.py was pruned, want kept")
	}
}

func TestFingerprintStatChangesWithMtimeOrSize(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.py")
	if err := os.WriteFile(p, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fp1 := Fingerprint(p, HashStat)

	if err := os.WriteFile(p, []byte("x = 12345\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fp2 := Fingerprint(p, HashStat)

	if fp1 == fp2 {
		t.Fatal("fingerprint unchanged after size change")
	}
}

func TestFingerprintSHA1Deterministic(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.py")
	if err := os.WriteFile(p, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if Fingerprint(p, HashSHA1) != Fingerprint(p, HashSHA1) {
		t.Fatal("sha1 fingerprint not stable across calls")
	}
}
