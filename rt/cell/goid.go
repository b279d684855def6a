package cell

import (
	"bytes"
	"runtime"
)

// curGoroutineID returns the current goroutine id parsed from the runtime.Stack
// header ("goroutine 123 [running]:"), or 0 if the header cannot be parsed.
//
// Only cells created with WithReentrancyCheck pay for this.
func curGoroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return 0
	}
	var id uint64
	for _, c := range b[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
