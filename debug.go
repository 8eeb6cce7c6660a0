package lua

// typeNameOfValue returns the Lua type name of a runtime value, for use in
// error messages built from values pulled directly off the register file
// rather than from a stack index (see TypeNameOf for the stack-index form).
func typeNameOfValue(v value) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	case string:
		return "string"
	case *table:
		return "table"
	case Function, *goClosure, *luaClosure:
		return "function"
	case *userData:
		return "userdata"
	case *State:
		return "thread"
	}
	return "no value"
}

func (l *State) runtimeError(message string) {
	Where(l, 1)
	l.PushString(message)
	l.Concat(2)
	l.Error()
}

func (l *State) typeError(v value, message string) {
	l.runtimeError("attempt to " + message + " a " + typeNameOfValue(v) + " value")
}

func (l *State) orderError(left, right value) {
	t1, t2 := typeNameOfValue(left), typeNameOfValue(right)
	if t1 == t2 {
		l.runtimeError("attempt to compare two " + t1 + " values")
	} else {
		l.runtimeError("attempt to compare " + t1 + " with " + t2)
	}
}

func (l *State) arithError(v1, v2 value) {
	if _, ok := toNumber(v1); !ok {
		v2 = v1
	}
	l.typeError(v2, "perform arithmetic on")
}

func (l *State) concatError(v1, v2 value) {
	if _, ok := v1.(string); ok {
		v1 = v2
	} else if _, ok := toNumber(v1); ok {
		v1 = v2
	}
	l.typeError(v1, "concatenate")
}

// SetDebugHook installs a debug hook on l, called according to mask (a
// combination of MaskCall, MaskReturn, MaskLine, MaskCount); count is the
// instruction interval for MaskCount.
func SetDebugHook(l *State, hook func(l *State, activationRecord Debug), mask byte, count int) {
	if hook == nil || mask == 0 {
		l.hooker, l.hookMask = nil, 0
		return
	}
	l.hooker = func(l *State, ar *Debug) { hook(l, *ar) }
	l.hookMask = mask
	l.baseHookCount = count
	l.resetHookCount()
}

func (l *State) resetHookCount() {
	l.hookCount = l.baseHookCount
}

// prototype returns the prototype of the Lua closure running in ci.
func (l *State) prototype(ci callInfo) *prototype {
	return l.stack[ci.function()].(*luaClosure).prototype
}

func (l *State) assert(cond bool) {
	if !cond {
		l.runtimeError("assertion failure")
	}
}

func (l *State) errorMessage() {
	if l.errorFunction != 0 { // is there an error handling function?
		if errorFunction, ok := l.stack[l.errorFunction].(*luaClosure); ok {
			l.stack[l.top] = l.stack[l.top-1] // move argument
			l.stack[l.top-1] = errorFunction  // push function
			l.top++
			l.call(l.top-2, 1, false)
		} else {
			l.throw(ErrorError)
		}
	}
	l.throw(RuntimeError)
}

func (l *State) Stack(level int, activationRecord *Debug) (ok bool) {
	if level < 0 {
		return // invalid (negative) level
	}
	callInfo := l.callInfo
	for ; level > 0 && callInfo != &l.baseCallInfo; level, callInfo = level-1, callInfo.previous() {
	}
	if level == 0 && callInfo != &l.baseCallInfo { // level found?
		activationRecord.callInfo, ok = callInfo, true
	}
	return
}

// functionInfo fills in the "S" fields of ar from the closure f (nil when f
// is a Go function with no prototype to describe).
func functionInfo(ar *Debug, f closure) {
	lf, ok := f.(*luaClosure)
	if !ok {
		ar.Source, ar.What = "=[Go]", "Go"
		ar.LineDefined, ar.LastLineDefined = -1, -1
		ar.ShortSource = chunkID(ar.Source)
		return
	}
	p := lf.prototype
	ar.Source = p.source
	if ar.Source == "" {
		ar.Source = "=?"
	}
	ar.ShortSource = chunkID(ar.Source)
	ar.LineDefined = p.lineDefined
	ar.LastLineDefined = p.lastLineDefined
	if ar.LineDefined == 0 {
		ar.What = "main"
	} else {
		ar.What = "Lua"
	}
}

// currentLine returns the source line currently executing in ci, or -1 if
// unknown.
func (l *State) currentLine(ci *luaCallInfo) int {
	p := l.prototype(ci)
	pc := int(ci.savedPC) - 1
	if pc < 0 {
		pc = 0
	}
	if pc < len(p.lineInfo) {
		return int(p.lineInfo[pc])
	}
	return -1
}

func (l *State) Info(what string, activationRecord *Debug) bool {
	var f closure
	var callInfo callInfo
	if what[0] == '>' {
		fv, ok := l.stack[l.top-1].(closure)
		apiCheck(ok, "function expected")
		what = what[1:] // skip the '>'
		l.top--         // pop function
		f = fv
	} else {
		callInfo = activationRecord.callInfo
		fv, ok := l.stack[callInfo.function()].(closure)
		l.assert(ok)
		f = fv
	}
	ok, hasL, hasF := true, false, false
	for _, r := range what {
		switch r {
		case 'S':
			functionInfo(activationRecord, f)
		case 'l':
			activationRecord.CurrentLine = -1
			if callInfo != nil && callInfo.isLua() {
				activationRecord.CurrentLine = l.currentLine(callInfo.(*luaCallInfo))
			}
		case 'u':
			if f == nil {
				activationRecord.UpValueCount = 0
			} else {
				activationRecord.UpValueCount = f.upValueCount()
			}
			if lf, ok := f.(*luaClosure); !ok {
				activationRecord.IsVarArg = true
				activationRecord.ParameterCount = 0
			} else {
				activationRecord.IsVarArg = lf.prototype.isVarArg
				activationRecord.ParameterCount = lf.prototype.parameterCount
			}
		case 't':
			activationRecord.IsTailCall = callInfo != nil && callInfo.isCallStatus(callStatusTail)
		case 'n':
			// Determining the calling name requires inspecting the caller's
			// bytecode at the call site; not tracked here, so name lookup
			// always falls back to the global-name search in ArgumentError.
			activationRecord.NameKind = ""
			activationRecord.Name = ""
		case 'L':
			hasL = true
		case 'f':
			hasF = true
		default:
			ok = false
		}
	}
	if hasF {
		l.apiPush(f)
	}
	if hasL {
		l.createValidLinesTable(activationRecord.callInfo)
	}
	return ok
}

// createValidLinesTable pushes a table mapping each executable line number of
// the running Lua function to true, or nil if ci is not a Lua call.
func (l *State) createValidLinesTable(ci callInfo) {
	lci, ok := ci.(*luaCallInfo)
	if !ok {
		l.PushNil()
		return
	}
	p := l.prototype(lci)
	l.CreateTable(0, len(p.lineInfo))
	for _, line := range p.lineInfo {
		l.PushInteger(int(line))
		l.PushBoolean(true)
		l.RawSet(-3)
	}
}
