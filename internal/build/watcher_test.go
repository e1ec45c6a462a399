package build

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	tu "github.com/starford/anubis/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatch(t *testing.T, files map[string]string, ignore ...string) (string, *atomic.Int32) {
	t.Helper()
	root, src := tu.TestSource(t, files, ignore...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var rebuilds atomic.Int32
	go Watch(ctx, src, src.Root(), 50*time.Millisecond, quietLogger(), func(context.Context) {
		rebuilds.Add(1)
	})
	time.Sleep(100 * time.Millisecond)
	return root, &rebuilds
}

func TestWatch_NewFileTriggersRebuild(t *testing.T) {
	root, rebuilds := startWatch(t, map[string]string{"a.rs": "// nothing"})

	tu.WriteFile(t, root, "b.rs", "/* @[B|] text @ */")

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return rebuilds.Load() >= 1
	}, "rebuild not triggered by new file")
}

func TestWatch_NewDirectoryWatched(t *testing.T) {
	root, rebuilds := startWatch(t, map[string]string{"a.rs": "// nothing"})

	tu.WriteFile(t, root, "sub/deeper/c.rs", "/* @[C|] text @ */")

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return rebuilds.Load() >= 1
	}, "rebuild not triggered by file in new directory")
}

func TestWatch_UnchangedContentSkipsRebuild(t *testing.T) {
	root, rebuilds := startWatch(t, map[string]string{"a.rs": "same"})

	tu.WriteFile(t, root, "a.rs", "same")
	time.Sleep(400 * time.Millisecond)

	if n := rebuilds.Load(); n != 0 {
		t.Errorf("expected no rebuild for identical content, got %d", n)
	}
}

func TestWatch_IgnoredFileSkipsRebuild(t *testing.T) {
	root, rebuilds := startWatch(t, map[string]string{"a.rs": "x"}, "*.log")

	tu.WriteFile(t, root, "debug.log", "noise")
	time.Sleep(400 * time.Millisecond)

	if n := rebuilds.Load(); n != 0 {
		t.Errorf("expected no rebuild for ignored file, got %d", n)
	}
}
