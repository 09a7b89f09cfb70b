package archive

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// newClone creates a bare remote with one commit on main and returns a
// working clone of it.
func newClone(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	remote := t.TempDir()
	gitRun(t, remote, "init", "--bare")

	work := t.TempDir()
	gitRun(t, work, "clone", remote, "repo")
	repo := filepath.Join(work, "repo")

	gitRun(t, repo, "config", "user.email", "archive@example.com")
	gitRun(t, repo, "config", "user.name", "Archive")
	gitRun(t, repo, "branch", "-m", "main")
	if err := os.WriteFile(filepath.Join(repo, ".gitkeep"), nil, 0o644); err != nil {
		t.Fatalf("write .gitkeep: %v", err)
	}
	gitRun(t, repo, "add", ".")
	gitRun(t, repo, "commit", "-m", "init")
	gitRun(t, repo, "push", "origin", "main")
	return repo
}

func gitRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return string(out)
}

func commitCount(t *testing.T, repo string) string {
	t.Helper()
	return strings.TrimSpace(gitRun(t, repo, "rev-list", "--count", "HEAD"))
}

func TestGitDestination(t *testing.T) {
	repo := newClone(t)
	dest := NewGitDestination(repo, "ledger.jsonl", "main")
	ctx := context.Background()

	first := []byte(`{"version":"1","type":"header"}` + "\n")
	if err := dest.Write(ctx, first); err != nil {
		t.Fatalf("first write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(repo, "ledger.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != string(first) {
		t.Fatalf("file content = %q", got)
	}
	if n := commitCount(t, repo); n != "2" {
		t.Fatalf("commits after first write = %s, want 2", n)
	}

	// Unchanged content makes no commit.
	if err := dest.Write(ctx, first); err != nil {
		t.Fatalf("repeat write: %v", err)
	}
	if n := commitCount(t, repo); n != "2" {
		t.Fatalf("commits after repeat write = %s, want 2", n)
	}

	second := []byte(`{"version":"1","type":"header","decision_count":1}` + "\n")
	if err := dest.Write(ctx, second); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if n := commitCount(t, repo); n != "3" {
		t.Fatalf("commits after second write = %s, want 3", n)
	}
}

func TestGitDestination_SubDirectory(t *testing.T) {
	repo := newClone(t)
	dest := NewGitDestination(repo, "data/ledger.jsonl", "main")

	data := []byte(`{"type":"header"}` + "\n")
	if err := dest.Write(context.Background(), data); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(repo, "data", "ledger.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("content = %q", got)
	}
	if !strings.HasSuffix(dest.Name(), filepath.Join("data", "ledger.jsonl")) {
		t.Errorf("name = %q", dest.Name())
	}
}
