//go:build kassert

package kassert

func assertTrue(cond bool, msg string, args ...any) {
	if !cond {
		panic("kassert: " + formatMsg(msg, args...))
	}
}
