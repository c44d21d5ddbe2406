package generator

// HookPos names a point of a run at which hooks are invoked.
type HookPos struct {
	Name string
}

// HookPosLevelDone triggers after a cache level was processed, whether it
// succeeded or not. The item is the LevelResult.
var HookPosLevelDone = &HookPos{Name: "LevelDone"}

// HookPosRunDone triggers once at the end of a run, including a run that
// stopped on a fatal error. The item is the *RunReport.
var HookPosRunDone = &HookPos{Name: "RunDone"}

// HookCtx is what a hook receives.
type HookCtx struct {
	Generator *Generator
	Pos       *HookPos
	Item      any
}

// Hook is invoked by the generator.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// AcceptHook registers a hook. Hooks run synchronously, in registration
// order.
func (g *Generator) AcceptHook(hook Hook) {
	g.hooks = append(g.hooks, hook)
}

func (g *Generator) invokeHook(pos *HookPos, item any) {
	ctx := HookCtx{Generator: g, Pos: pos, Item: item}
	for _, hook := range g.hooks {
		hook.Func(ctx)
	}
}
