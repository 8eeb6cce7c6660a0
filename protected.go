package lua

import "io"

// FileError indicates that a file could not be opened or read by LoadFile.
const FileError Status = ErrorError + 1

func (s Status) Error() string {
	switch s {
	case Ok:
		return "ok"
	case Yield:
		return "yield"
	case RuntimeError:
		return "runtime error"
	case SyntaxError:
		return "syntax error"
	case MemoryError:
		return "memory error"
	case GCError:
		return "garbage collector error"
	case ErrorError:
		return "error in error handling"
	case FileError:
		return "file error"
	}
	return "unknown error"
}

// protectedCall runs f and catches any error thrown through l.throw (or any
// apiCheck failure), restoring the stack to oldTop and the running state to
// what it was before f started. A panic carrying a string or an error value
// is also caught and reported as RuntimeError; any other panic propagates.
func (l *State) protectedCall(f func(), oldTop stackIndex, oldErrorFunction int) (err error) {
	oldCallInfo := l.callInfo
	oldAllowHook := l.allowHook
	oldNonYieldableCallCount := l.nonYieldableCallCount
	oldNestedGoCallCount := l.nestedGoCallCount
	l.protectedDepth++
	defer func() {
		l.protectedDepth--
		r := recover()
		if r == nil {
			return
		}
		var status Status
		var errObj value
		switch e := r.(type) {
		case failure:
			status = e.status
			if l.top > oldTop {
				errObj = l.stack[l.top-1]
			}
		case string:
			status = RuntimeError
			errObj = e
		case error:
			status = RuntimeError
			errObj = e.Error()
		default:
			panic(r)
		}
		l.close(oldTop)
		l.callInfo = oldCallInfo
		l.allowHook = oldAllowHook
		l.nonYieldableCallCount = oldNonYieldableCallCount
		l.nestedGoCallCount = oldNestedGoCallCount
		l.errorFunction = oldErrorFunction
		l.top = oldTop
		l.stack[l.top] = errObj
		l.top++
		err = status
	}()
	f()
	return nil
}

// ProtectedCall calls a function in protected mode. argCount and resultCount
// have the same meaning as in Call. If errorFunction is 0, the error object
// returned on the stack is whatever value was thrown; otherwise errorFunction
// is the stack index of a message handler called while the stack is still
// unwinding.
func (l *State) ProtectedCall(argCount, resultCount, errorFunction int) error {
	return l.ProtectedCallWithContinuation(argCount, resultCount, 0, errorFunction, nil)
}

// ProtectedCallWithContinuation is like ProtectedCall but additionally allows
// the call to be resumed via continuation after a yield. Since coroutines
// are not implemented, continuation is only invoked if present and the call
// errors, mirroring the error path a yieldable call would otherwise take.
func (l *State) ProtectedCallWithContinuation(argCount, resultCount, context int, errorFunction int, continuation Function) error {
	apiCheck(l.status == Ok, "cannot do calls on non-normal thread")
	l.checkElementCount(argCount + 1)
	var realErrorFunction int
	if errorFunction != 0 {
		realErrorFunction = l.AbsIndex(errorFunction)
	}
	function := l.top - (argCount + 1)
	oldTop := function
	oldErrorFunction := l.errorFunction
	l.errorFunction = realErrorFunction
	err := l.protectedCall(func() {
		l.call(function, int16(resultCount), false)
	}, oldTop, oldErrorFunction)
	l.errorFunction = oldErrorFunction
	if err != nil && continuation != nil {
		continuation(l)
	}
	return err
}

// Context reports whether the running Go function was resumed after a yield
// and, if so, the context value that was passed to
// ProtectedCallWithContinuation. Coroutines are not implemented, so Context
// always reports a non-yielded call.
func (l *State) Context() (Status, int) {
	return Ok, 0
}

// AtPanic sets panicFunction as the panic function of l, called when an
// error escapes with no protected call to catch it. Returns the previous
// panic function.
func AtPanic(l *State, panicFunction Function) Function {
	old := l.global.panicFunction
	l.global.panicFunction = panicFunction
	return old
}

// PushUserData pushes a Go value onto the stack as user data.
func (l *State) PushUserData(data interface{}) {
	l.apiPush(&userData{data: data})
}

// RawSetInt sets t[key] = v, where v is the value on top of the stack and t
// is the table at index, without invoking metamethods.
func (l *State) RawSetInt(index, key int) {
	t, ok := l.indexToValue(index).(*table)
	apiCheck(ok, "table expected")
	l.checkElementCount(1)
	t.putAtInt(key, l.stack[l.top-1])
	l.top--
}

// Load loads a Lua chunk from r, named name, compiling it without running
// it. The compiled function is pushed onto the stack. mode controls whether
// text ("t"), binary ("b") chunks, or both (empty or "bt") are accepted.
func (l *State) Load(r io.Reader, name, mode string) error {
	if err := protectedParser(l, r, name, mode); err != nil {
		return err
	}
	if f := l.stack[l.top-1].(*luaClosure); len(f.upValues) == 1 {
		env := l.global.registry.atInt(RegistryIndexGlobals)
		f.upValues[0].setValue(env)
	}
	return nil
}
