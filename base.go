package lua

import (
	"os"
	"runtime"
	"strconv"
)

func basePrint(l *State) int {
	n := l.Top()
	l.Global("tostring")
	for i := 1; i <= n; i++ {
		l.PushValue(-1) // function to be called
		l.PushValue(i)  // value to print
		l.Call(1, 1)
		s, ok := l.ToString(-1)
		if !ok {
			Errorf(l, "'tostring' must return a string to 'print'")
			panic("unreachable")
		}
		if i > 1 {
			os.Stdout.WriteString("\t")
		}
		os.Stdout.WriteString(s)
		l.Pop(1) // pop result
	}
	os.Stdout.WriteString("\n")
	return 0
}

func baseToNumber(l *State) int {
	if l.IsNoneOrNil(2) { // standard conversion
		if n, ok := l.ToNumber(1); ok {
			l.PushNumber(n)
			return 1
		}
		CheckAny(l, 1)
	} else {
		s := CheckString(l, 1)
		base := CheckInteger(l, 2)
		ArgumentCheck(l, 2 <= base && base <= 36, 2, "base out of range")
		if i, err := strconv.ParseInt(s, base, 64); err == nil {
			l.PushInteger(int(i))
			return 1
		}
	}
	l.PushNil()
	return 1
}

func baseError(l *State) int {
	level := OptInteger(l, 2, 1)
	l.SetTop(1)
	if s, ok := l.ToString(1); ok && level > 0 {
		Where(l, level)
		l.PushString(s)
		l.Concat(2)
	}
	l.Error()
	panic("unreachable")
}

func baseCollectGarbage(l *State) int {
	switch opt, _ := OptString(l, 1, "collect"), OptInteger(l, 2, 0); opt {
	case "collect":
		runtime.GC()
		l.PushInteger(0)
	case "step":
		runtime.GC()
		l.PushBoolean(true)
	case "count":
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		l.PushNumber(float64(stats.HeapAlloc >> 10))
		l.PushInteger(int(stats.HeapAlloc & 0x3ff))
		return 2
	default:
		l.PushInteger(-1)
	}
	return 1
}

func baseMetaTable(l *State) int {
	CheckAny(l, 1)
	if !l.MetaTable(1) {
		l.PushNil()
		return 1
	}
	MetaField(l, 1, "__metatable")
	return 1
}

func baseSetMetaTable(l *State) int {
	t := l.Type(2)
	CheckType(l, 1, TypeTable)
	ArgumentCheck(l, t == TypeNil || t == TypeTable, 2, "nil or table expected")
	if MetaField(l, 1, "__metatable") {
		Errorf(l, "cannot change a protected metatable")
	}
	l.SetTop(2)
	l.SetMetaTable(1)
	return 1
}

func baseRawEqual(l *State) int {
	CheckAny(l, 1)
	CheckAny(l, 2)
	l.PushBoolean(l.RawEqual(1, 2))
	return 1
}

func baseRawLength(l *State) int {
	t := l.Type(1)
	ArgumentCheck(l, t == TypeTable || t == TypeString, 1, "table or string expected")
	l.PushInteger(l.RawLength(1))
	return 1
}

func baseRawGet(l *State) int {
	CheckType(l, 1, TypeTable)
	CheckAny(l, 2)
	l.SetTop(2)
	l.RawGet(1)
	return 1
}

func baseRawSet(l *State) int {
	CheckType(l, 1, TypeTable)
	CheckAny(l, 2)
	CheckAny(l, 3)
	l.SetTop(3)
	l.RawSet(1)
	return 1
}

func baseType(l *State) int {
	CheckAny(l, 1)
	l.PushString(TypeNameOf(l, 1))
	return 1
}

func baseNext(l *State) int {
	CheckType(l, 1, TypeTable)
	l.SetTop(2)
	if l.Next(1) {
		return 2
	}
	l.PushNil()
	return 1
}

func basePairs(method string, isZero bool, iter Function) Function {
	return func(l *State) int {
		if !MetaField(l, 1, method) { // no metamethod?
			CheckType(l, 1, TypeTable) // argument must be a table
			l.PushGoFunction(iter)     // will return generator,
			l.PushValue(1)             // state,
			if isZero {                // and initial value
				l.PushInteger(0)
			} else {
				l.PushNil()
			}
		} else {
			l.PushValue(1) // argument 'self' to metamethod
			l.Call(1, 3)   // get 3 values from metamethod
		}
		return 3
	}
}

func baseIntPairs(l *State) int {
	i := CheckInteger(l, 2)
	CheckType(l, 1, TypeTable)
	i++ // next value
	l.PushInteger(i)
	l.RawGetInt(1, i)
	if l.IsNil(-1) {
		return 1
	}
	return 2
}

func baseAssert(l *State) int {
	if !l.ToBoolean(1) {
		Errorf(l, "%s", OptString(l, 2, "assertion failed!"))
		panic("unreachable")
	}
	return l.Top()
}

func baseSelect(l *State) int {
	n := l.Top()
	if l.Type(1) == TypeString {
		if s, _ := l.ToString(1); s == "#" {
			l.PushInteger(n - 1)
			return 1
		}
	}
	i := CheckInteger(l, 1)
	if i < 0 {
		i = n + i
	} else if i > n {
		i = n
	}
	ArgumentCheck(l, 1 <= i, 1, "index out of range")
	return n - i
}

func finishProtectedCall(l *State, status bool) int {
	if !l.CheckStack(1) {
		l.SetTop(0) // create space for return values
		l.PushBoolean(false)
		l.PushString("stack overflow")
		return 2 // return false, message
	}
	l.PushBoolean(status) // first result (status)
	l.Replace(1)          // put first result in the first slot
	return l.Top()
}

func protectedCallContinuation(l *State) int {
	s, _ := l.Context()
	return finishProtectedCall(l, s == Yield)
}

func baseProtectedCall(l *State) int {
	CheckAny(l, 1)
	l.PushNil()
	l.Insert(1) // create space for status result
	err := l.ProtectedCallWithContinuation(l.Top()-2, MultipleReturns, 0, 0, protectedCallContinuation)
	return finishProtectedCall(l, err == nil)
}

func baseProtectedCallX(l *State) int {
	n := l.Top()
	ArgumentCheck(l, n >= 2, 2, "value expected")
	l.PushValue(1) // exchange function and error handler
	l.Copy(2, 1)
	l.Replace(2)
	err := l.ProtectedCallWithContinuation(n-2, MultipleReturns, 1, 1, protectedCallContinuation)
	return finishProtectedCall(l, err == nil)
}

func baseToString(l *State) int {
	CheckAny(l, 1)
	ToStringMeta(l, 1)
	return 1
}

var baseFunctions = []RegistryFunction{
	{"assert", baseAssert},
	{"collectgarbage", baseCollectGarbage},
	{"error", baseError},
	{"getmetatable", baseMetaTable},
	{"ipairs", basePairs("__ipairs", true, baseIntPairs)},
	{"next", baseNext},
	{"pairs", basePairs("__pairs", false, baseNext)},
	{"pcall", baseProtectedCall},
	{"print", basePrint},
	{"rawequal", baseRawEqual},
	{"rawlen", baseRawLength},
	{"rawget", baseRawGet},
	{"rawset", baseRawSet},
	{"select", baseSelect},
	{"setmetatable", baseSetMetaTable},
	{"tonumber", baseToNumber},
	{"tostring", baseToString},
	{"type", baseType},
	{"xpcall", baseProtectedCallX},
}

// BaseOpen installs the base library into l's global table.
func BaseOpen(l *State) int {
	l.PushGlobalTable()
	l.PushGlobalTable()
	l.SetField(-2, "_G")
	SetFunctions(l, baseFunctions, 0)
	l.PushString(Version)
	l.SetField(-2, "_VERSION")
	return 1
}
