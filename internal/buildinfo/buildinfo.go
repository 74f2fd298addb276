package buildinfo

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X evdarp/internal/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
		"go":      runtime.Version(),
	}
}

// String is the one-line banner printed at startup.
func String() string {
	s := "evdarp " + Version
	if Commit != "" {
		s += fmt.Sprintf(" (%s)", Commit)
	}
	return s
}
