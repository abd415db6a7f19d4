package version

import "testing"

func TestString(t *testing.T) {
	defer func(v, c, d string) { Version, Commit, Dirty = v, c, d }(Version, Commit, Dirty)

	Version, Commit, Dirty = "", "", ""
	if got := String(); got != "dev" {
		t.Fatalf("expected dev, got %q", got)
	}
	Commit, Dirty = "abc1234", "dirty"
	if got := String(); got != "dev-abc1234*" {
		t.Fatalf("expected dirty dev build, got %q", got)
	}
	Version = "v1.0.0"
	if got := Get(); got.Version != "v1.0.0" || got.Commit != "abc1234" || got.GoVersion == "" {
		t.Fatalf("unexpected info %+v", got)
	}
}
