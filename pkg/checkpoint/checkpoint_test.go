package checkpoint

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("study.boris", "tsv", "1.0")
	if a != Fingerprint("study.boris", "tsv", "1.0") {
		t.Error("fingerprint should be stable")
	}
	if a == Fingerprint("study.boris", "tsv", "2.0") {
		t.Error("fingerprint should change with inputs")
	}
	if Fingerprint("ab", "c") == Fingerprint("a", "bc") {
		t.Error("part boundaries should matter")
	}
	if len(a) != 32 {
		t.Errorf("len = %d", len(a))
	}
}

func TestTracker_ResumeAndComplete(t *testing.T) {
	ctx := context.Background()
	backend, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := Fingerprint("run")

	tr, resumed, err := Start(ctx, backend, key, "study.boris", "out")
	if err != nil {
		t.Fatal(err)
	}
	if resumed {
		t.Error("first start should not resume")
	}
	if err := tr.MarkDone(ctx, "out/b.tsv"); err != nil {
		t.Fatal(err)
	}
	if err := tr.MarkDone(ctx, "out/a.tsv"); err != nil {
		t.Fatal(err)
	}
	tr.MarkDone(ctx, "out/a.tsv")

	again, resumed, err := Start(ctx, backend, key, "study.boris", "out")
	if err != nil {
		t.Fatal(err)
	}
	if !resumed || again.ID() != tr.ID() {
		t.Fatalf("expected to resume %s, got %s (resumed=%v)", tr.ID(), again.ID(), resumed)
	}
	got := again.Completed()
	if len(got) != 2 || got[0] != "out/a.tsv" || got[1] != "out/b.tsv" {
		t.Errorf("Completed = %v", got)
	}
	if done, _ := again.IsDone(ctx, "out/a.tsv"); !done {
		t.Error("a.tsv should be done")
	}
	if done, _ := again.IsDone(ctx, "out/c.tsv"); done {
		t.Error("c.tsv should not be done")
	}

	if err := again.Complete(ctx); err != nil {
		t.Fatal(err)
	}
	fresh, resumed, err := Start(ctx, backend, key, "study.boris", "out")
	if err != nil {
		t.Fatal(err)
	}
	if resumed || fresh.ID() == tr.ID() {
		t.Error("a completed run should not be resumed")
	}

	cp, err := backend.Load(ctx, tr.ID())
	if err != nil {
		t.Fatal(err)
	}
	if cp.Phase != PhaseComplete || cp.CompletedAt == nil || cp.Duration() < 0 {
		t.Errorf("loaded checkpoint = %+v", cp)
	}
}

func TestFileBackend_MissingAndCleanup(t *testing.T) {
	ctx := context.Background()
	backend, _ := NewFileBackend(t.TempDir())

	if _, err := backend.Load(ctx, "nope"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load missing = %v", err)
	}
	if _, err := backend.FindByKey(ctx, "nope"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("FindByKey missing = %v", err)
	}

	backend.Save(ctx, &Checkpoint{ID: "old", Key: "k", Phase: PhaseExporting})
	n, err := backend.Cleanup(-time.Second)
	if err != nil || n != 1 {
		t.Errorf("Cleanup = %d, %v", n, err)
	}
	if backend.Name() != "file" {
		t.Errorf("Name = %q", backend.Name())
	}
}

func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("ETHOFLOW_TEST_REDIS")
	if addr == "" {
		t.Skip("ETHOFLOW_TEST_REDIS not set")
	}
	ctx := context.Background()
	cfg := DefaultRedisConfig(addr)
	cfg.Prefix = "ethoflow:test:" + time.Now().Format("150405.000") + ":"
	backend, err := NewRedisBackend(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()

	tr, _, err := Start(ctx, backend, "k", "p", "d")
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Delete(ctx, tr.ID())
	tr.MarkDone(ctx, "d/x.tsv")

	again, resumed, err := Start(ctx, backend, "k", "p", "d")
	if err != nil || !resumed || len(again.Completed()) != 1 {
		t.Fatalf("resume = %v, %v, %v", resumed, again, err)
	}
	again.Complete(ctx)
	if _, err := backend.FindByKey(ctx, "k"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("completed run still indexed: %v", err)
	}
}
