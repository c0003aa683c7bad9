package vcs

import "testing"

func TestParsePorcelainStatus(t *testing.T) {
	out := " M src/a.ts\n?? src/new.ts\nA  src/b.ts\nR  src/old.ts -> src/renamed.ts\n D src/gone.ts\n"
	res := ParsePorcelainStatus(out)

	if len(res.Modified) != 1 || res.Modified[0] != "src/a.ts" {
		t.Fatalf("modified = %v", res.Modified)
	}
	if len(res.Added) != 1 || res.Added[0] != "src/b.ts" {
		t.Fatalf("added = %v", res.Added)
	}
	if len(res.Deleted) != 1 || res.Deleted[0] != "src/gone.ts" {
		t.Fatalf("deleted = %v", res.Deleted)
	}
	if len(res.Untracked) != 1 || res.Untracked[0] != "src/new.ts" {
		t.Fatalf("untracked = %v", res.Untracked)
	}
	if res.Renamed["src/old.ts"] != "src/renamed.ts" {
		t.Fatalf("renamed = %v", res.Renamed)
	}
}

func TestParsePorcelainStatusClean(t *testing.T) {
	res := ParsePorcelainStatus("")
	if !res.IsClean() {
		t.Fatalf("expected clean status")
	}
}

func TestParseNameStatus(t *testing.T) {
	out := "M\tsrc/a.ts\nA\tsrc/b.ts\nD\tsrc/c.ts\nR90\tsrc/old.ts\tsrc/new.ts\n"
	res := ParseNameStatus(out)

	if len(res.Modified) != 1 || res.Modified[0] != "src/a.ts" {
		t.Fatalf("modified = %v", res.Modified)
	}
	if len(res.Added) != 1 || res.Added[0] != "src/b.ts" {
		t.Fatalf("added = %v", res.Added)
	}
	if len(res.Deleted) != 1 || res.Deleted[0] != "src/c.ts" {
		t.Fatalf("deleted = %v", res.Deleted)
	}
	if res.Renamed["src/old.ts"] != "src/new.ts" {
		t.Fatalf("renamed = %v", res.Renamed)
	}
}

func TestParseDiffStat(t *testing.T) {
	out := " src/a.ts | 10 +++++-----\n src/b.ts |  2 ++\n 2 files changed, 7 insertions(+), 5 deletions(-)\n"
	res := ParseDiffStat(out)

	if res.FilesChanged != 2 {
		t.Fatalf("files changed = %d", res.FilesChanged)
	}
	if res.LinesAdded != 7 {
		t.Fatalf("lines added = %d", res.LinesAdded)
	}
	if res.LinesDeleted != 5 {
		t.Fatalf("lines deleted = %d", res.LinesDeleted)
	}
}

func TestParseDiffStatEmpty(t *testing.T) {
	res := ParseDiffStat("")
	if res.FilesChanged != 0 || res.LinesAdded != 0 || res.LinesDeleted != 0 {
		t.Fatalf("expected zero-value result, got %+v", res)
	}
}
