package tracker

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// Origin identifies the call site responsible for an allocation or release.
// The interposition layer supplies one with every call; Here is a convenience
// for direct API users.
type Origin struct {
	File string
	Line int
}

// Here captures the caller's source location as an Origin.
func Here() Origin {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		return Origin{File: "unknown", Line: 0}
	}

	return Origin{File: filepath.Base(file), Line: line}
}

// String renders the origin as file:line.
func (o Origin) String() string {
	return fmt.Sprintf("%s:%d", o.File, o.Line)
}
