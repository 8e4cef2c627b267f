package port

// StubPort is a minimal port for unit tests that exercise scheduler and
// thread-manager internals directly, without driving real goroutines
// through their job functions. InitStack and RequestContextSwitch are
// no-ops:
// the test itself plays the role of "whichever thread is current" and
// inspects kernel state directly rather than observing it through a
// running goroutine.
type StubPort struct {
	DisableCount int
	EnableCount  int
	SwitchCount  int
}

func NewStubPort() *StubPort {
	return &StubPort{}
}

func (p *StubPort) DisableInterrupts() { p.DisableCount++ }
func (p *StubPort) EnableInterrupts()  { p.EnableCount++ }
func (p *StubPort) InitStack(tc *ThreadContext) {}
func (p *StubPort) RequestContextSwitch(current, next *ThreadContext) {
	p.SwitchCount++
}
func (p *StubPort) StartKernel(first *ThreadContext) {}
func (p *StubPort) IdleLoop()                        {}
