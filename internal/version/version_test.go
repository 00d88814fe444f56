package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	origVersion, origCommit := Version, Commit
	defer func() { Version, Commit = origVersion, origCommit }()

	Version = "1.2.3"
	Commit = "unknown"
	if got := Info(); got != "1.2.3" {
		t.Errorf("Info() = %q, want bare version without commit", got)
	}

	Commit = "abcdef1234567890"
	got := Info()
	if !strings.HasPrefix(got, "1.2.3 (abcdef1") {
		t.Errorf("Info() = %q, want short commit suffix", got)
	}
}
