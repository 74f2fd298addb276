package buildinfo

import "testing"

func TestInfo(t *testing.T) {
	old := Commit
	defer func() { Commit = old }()
	Commit = "abc123"
	if got := String(); got != "evdarp "+Version+" (abc123)" {
		t.Fatalf("String() = %q", got)
	}
	if Info()["commit"] != "abc123" || Info()["go"] == "" {
		t.Fatalf("Info() = %v", Info())
	}
}
