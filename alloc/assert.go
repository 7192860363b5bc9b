package alloc

import "fmt"

// fatalf panics with an error wrapping sentinel. Reserved for states from
// which continuing would hand out invalid memory.
func fatalf(sentinel error, format string, args ...any) {
	panic(fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}
