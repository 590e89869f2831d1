package sqlite

import (
	"context"
	"testing"
)

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

func TestInstallLog(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	count, err := repo.InstallCount(ctx, "armv7-unknown-linux-gnueabihf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("initial count = %d, want 0", count)
	}

	if err := repo.RecordInstall(ctx, "armv7-unknown-linux-gnueabihf", "gcc-arm-linux-gnueabihf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, err = repo.InstallCount(ctx, "armv7-unknown-linux-gnueabihf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	// Other triples are unaffected
	count, err = repo.InstallCount(ctx, "aarch64-unknown-linux-gnu")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("count for other triple = %d, want 0", count)
	}
}

func TestRunHistory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	runs := []RunRecord{
		{Target: "pi4", Triple: "armv7-unknown-linux-gnueabihf", Stage: "build", Success: false, Error: "COMPILE_FAILED: expected `;`"},
		{Target: "pi4", Triple: "armv7-unknown-linux-gnueabihf", Stage: "done", Success: true, RemotePath: "/opt/app/main", BytesTransferred: 4096},
	}
	for _, rec := range runs {
		if err := repo.RecordRun(ctx, rec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := repo.RecentRuns(ctx, "pi4", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got))
	}

	// Newest first
	if !got[0].Success || got[0].BytesTransferred != 4096 {
		t.Errorf("newest run = %+v, want successful deploy", got[0])
	}
	if got[1].Success || got[1].Stage != "build" {
		t.Errorf("oldest run = %+v, want failed build", got[1])
	}
	if got[1].Error == "" {
		t.Error("expected failure to preserve error text")
	}

	other, err := repo.RecentRuns(ctx, "pi5", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no runs for other target, got %d", len(other))
	}
}
