package lua

import (
	"fmt"
	"math"
	"strings"
)

const (
	MultipleReturns = -1 // option for multiple returns in 'PCall' and 'Call'
)

const (
	HookCall, MaskCall = iota, 1 << iota
	HookReturn, MaskReturn
	HookLine, MaskLine
	HookCount, MaskCount
	HookTailCall, MaskTailCall
)

type Status byte

const (
	Ok Status = iota
	Yield
	RuntimeError
	SyntaxError
	MemoryError
	GCError
	ErrorError
)

const (
	TypeNil = iota
	TypeBoolean
	TypeLightUserData
	TypeNumber
	TypeString
	TypeTable
	TypeFunction
	TypeUserData
	TypeThread

	TypeCount
	TypeNone = TypeNil - 1
)

const (
	OpAdd = iota
	OpSub
	OpMul
	OpMod
	OpPow
	OpDiv
	OpIDiv
	OpBAnd
	OpBOr
	OpBXor
	OpShl
	OpShr
	OpUnaryMinus
	OpBNot
)

const (
	OpEq = iota
	OpLT
	OpLE
)

const (
	RegistryIndexMainThread = iota
	RegistryIndexGlobals
)

const (
	Signature     = "\033Lua" // mark for precompiled code ('<esc>Lua')
	VersionMajor  = 5
	VersionMinor  = 3
	VersionNumber = 503
	MinStack      = 20 // minimum Lua stack available to a Go function
	Version       = "Lua " + string(rune('0'+VersionMajor)) + "." + string(rune('0'+VersionMinor))
	RegistryIndex = firstPseudoIndex
)

type RegistryFunction struct {
	Name     string
	Function Function
}

type Debug struct {
	Event                                     int
	Name                                      string
	NameKind                                  string // "global", "local", "field", "method"
	What                                      string // "Lua", "Go", "main", "tail"
	Source                                    string
	ShortSource                               string
	CurrentLine, LineDefined, LastLineDefined int
	UpValueCount, ParameterCount              int
	IsVarArg, IsTailCall                      bool
	callInfo                                  callInfo // active function
}

type Hook func(l *State, activationRecord *Debug)
type Function func(l *State) int

type pc int
type callStatus byte

const (
	callStatusLua                callStatus = 1 << iota // call is running a Lua function
	callStatusHooked                                    // call is running a debug hook
	callStatusReentry                                   // call is running on same invocation of execute of previous call
	callStatusYielded                                   // call reentered after suspension
	callStatusYieldableProtected                        // call is a yieldable protected call
	callStatusError                                     // call has an error status (pcall)
	callStatusTail                                      // call was tail called
	callStatusHookYielded                               // last hook called yielded
)

// per thread state
type State struct {
	// TODO necessary? errorJmp *longjmp // current error recover point
	status                Status
	top                   int // first free slot in the stack
	global                *globalState
	callInfo              callInfo // call info for current function
	oldPC                 pc       // last pC traced
	stackLast             int      // last free slot in the stack
	stack                 []value
	nonYieldableCallCount uint
	nestedGoCallCount     uint
	hookMask              byte
	allowHook             bool
	baseHookCount         int
	hookCount             int
	hooker                Hook
	upValues              *openUpValue
	errorFunction         int         // current error handling function (stack index)
	baseCallInfo          luaCallInfo // callInfo for first level (go calling lua)
	protectedDepth        int         // number of protectedCall frames currently unwinding through
}

type globalState struct {
	mainThread     *State
	tagMethodNames [tmCount]string
	metaTables     [TypeCount]*table // metatables for basic types
	registry       *table
	// seed uint // randomized seed for hashes
	// upValueHead upValue // head of double-linked list of all open upvalues
	panicFunction      Function // to be called in unprotected errors
	version            *float64 // pointer to version number
	memoryErrorMessage string
}

func (g *globalState) metaTable(o value) *table {
	var t int
	switch o.(type) {
	case nil:
		t = TypeNil
	case bool:
		t = TypeBoolean
	case int64, float64:
		t = TypeNumber
	case string:
		t = TypeString
	case *table:
		t = TypeTable
	case Function:
		t = TypeFunction
	case *userData:
		t = TypeUserData
	case *State:
		t = TypeThread
	default:
		return nil
	}
	return g.metaTables[t]
}

func (l *State) ApiCheckStackSpace(n int) {
	l.assert(n < l.top-l.callInfo.function())
}

func (l *State) adjustResults(resultCount int) {
	if resultCount == MultipleReturns && l.callInfo.top() < l.top {
		l.callInfo.setTop(l.top)
	}
}

func apiCheck(condition bool, message string) {
	if !condition {
		panic(message)
	}
}

func (l *State) apiIncrementTop() {
	l.top++
	apiCheck(l.top <= l.callInfo.top(), "stack overflow")
}

func (l *State) apiPush(v value) {
	l.push(v)
	apiCheck(l.top <= l.callInfo.top(), "stack overflow")
}

func (l *State) checkElementCount(n int) {
	apiCheck(n < l.top-l.callInfo.function(), "not enough elements in the stack")
}

func (l *State) checkResults(argCount, resultCount int) {
	apiCheck(resultCount == MultipleReturns || l.callInfo.top()-l.top >= resultCount-argCount,
		"results from function overflow current stack size")
}

func (l *State) CallWithContinuation(argCount, resultCount, context int, continuation Function) {
	apiCheck(continuation == nil || !l.callInfo.isLua(), "cannot use continuations inside hooks")
	l.checkElementCount(argCount + 1)
	apiCheck(l.status == Ok, "cannot do calls on non-normal thread")
	l.checkResults(argCount, resultCount)
	f := l.top - (argCount + 1)
	if continuation != nil && l.nonYieldableCallCount == 0 { // need to prepare continuation?
		callInfo := l.callInfo.(*goCallInfo)
		callInfo.continuation = continuation
		callInfo.context = context
		l.call(f, int16(resultCount), true) // just do the call
	} else { // no continuation or not yieldable
		l.call(f, int16(resultCount), false) // just do the call
	}
	l.adjustResults(resultCount)
}

func (l *State) Call(argCount, resultCount int) {
	l.CallWithContinuation(argCount, resultCount, 0, nil)
}

func (l *State) Version() *float64 {
	return l.global.version
}

func NewState() *State {
	v := float64(VersionNumber)
	l := &State{allowHook: true, status: Ok, nonYieldableCallCount: 1}
	g := &globalState{mainThread: l, registry: newTable(), version: &v, memoryErrorMessage: "not enough memory"}
	l.global = g
	l.initializeStack()
	g.registry.putAtInt(RegistryIndexMainThread, l)
	g.registry.putAtInt(RegistryIndexGlobals, newTable())
	copy(g.tagMethodNames[:], eventNames)
	return l
}

func UpValueIndex(i int) int {
	return RegistryIndex - i
}

func isPseudoIndex(i int) bool {
	return i <= RegistryIndex
}

func (l *State) RawGetInt(index, key int) {
	t, ok := l.indexToValue(index).(*table)
	apiCheck(ok, "table expected")
	l.apiPush(t.atInt(key))
}

func (l *State) SetField(index int, key string) {
	l.checkElementCount(1)
	t := l.indexToValue(index)
	l.stack[l.top] = key
	l.top++
	l.setTableAt(t, key, l.stack[l.top-2])
	l.top -= 2 // pop value and key
}

func (l *State) indexToValue(index int) value {
	switch callInfo := l.callInfo; {
	case index > 0:
		// TODO are these checks necessary? Can we just return l.callInfo[index]?
		apiCheck(index <= callInfo.top()-(callInfo.function()+1), "unacceptable index")
		if i := callInfo.function() + index; i < l.top {
			return l.stack[i]
		}
		return nil
	case !isPseudoIndex(index): // negative index
		apiCheck(index != 0 && -index <= l.top-(callInfo.function()+1), "invalid index")
		return l.stack[l.top+index]
	case index == RegistryIndex:
		return l.global.registry
	default: // upvalues
		i := RegistryIndex - index
		apiCheck(i <= maxUpValue+1, "upvalue index too large")
		if closure := l.stack[callInfo.function()].(*goClosure); i <= len(closure.upValues) {
			return closure.upValues[i-1]
		}
		return nil
	}
}

func (l *State) AbsIndex(index int) int {
	if index > 0 || isPseudoIndex(index) {
		return index
	}
	return l.top - l.callInfo.function() + index
}

func (l *State) Top() int {
	return l.top - (l.callInfo.function() + 1)
}

func (l *State) SetTop(index int) {
	f := l.callInfo.function()
	if index >= 0 {
		apiCheck(index <= l.stackLast-(f+1), "new top too large")
		i := l.top
		for l.top = f + 1 + index; i < l.top; i++ {
			l.stack[i] = nil
		}
	} else {
		apiCheck(-(index+1) <= l.top-(f+1), "invalid new top")
		l.top += index + 1 // 'subtract' index (index is negative)
	}
}

func (l *State) PushValue(index int) {
	l.apiPush(l.indexToValue(index))
}

func (l *State) Remove(index int) {
	// TODO
}

func (l *State) Insert(index int) {
	// TODO
}

func (l *State) Replace(index int) {
	// TODO
}

func (l *State) Copy(from, to int) {
	// TODO
}

func (l *State) CheckStack(size int) bool {
	callInfo := l.callInfo
	ok := l.stackLast-l.top > size
	if !ok && l.top+extraStack <= maxStack-size {
		l.growStack(size) // TODO rawRunUnprotected?
		ok = true
	}
	if ok && callInfo.top() < l.top+size {
		callInfo.setTop(l.top + size)
	}
	return ok
}

func (l *State) Type(index int) int {
	switch l.indexToValue(index).(type) {
	case nil:
		return TypeNil
	case bool:
		return TypeBoolean
	// case lightUserData:
	// 	return TypeLightUserData
	case int64, float64:
		return TypeNumber
	case string:
		return TypeString
	case *table:
		return TypeTable
	case Function:
		return TypeFunction
	case *userData:
		return TypeUserData
	case *State:
		return TypeThread
	}
	return TypeNone
}

func (l *State) TypeName(t int) string {
	return typeNames[t+1]
}

func (l *State) IsGoFunction(index int) bool {
	if _, ok := l.indexToValue(index).(Function); ok {
		return true
	}
	_, ok := l.indexToValue(index).(*goClosure)
	return ok
}

func (l *State) IsNumber(index int) bool {
	_, ok := toNumber(l.indexToValue(index))
	return ok
}

func (l *State) IsString(index int) bool {
	switch l.indexToValue(index).(type) {
	case string, int64, float64:
		return true
	}
	return false
}

func (l *State) IsUserData(index int) bool {
	_, ok := l.indexToValue(index).(*userData)
	return ok
}

func (l *State) Arith(op int) {
	if op != OpUnaryMinus {
		l.checkElementCount(2)
	} else {
		l.checkElementCount(1)
		l.push(l.stack[l.top-1])
	}
	o1, o2 := l.stack[l.top-2], l.stack[l.top-1]
	if n1, n2, ok := pairAsNumbers(o1, o2); ok {
		if result, ok := arith(op, n1, n2); ok {
			l.stack[l.top-2] = result
			l.top--
			return
		}
	}
	l.stack[l.top-2] = l.arith(o1, o2, tm(op)+tmAdd)
	l.top--
}

func (l *State) RawEqual(index1, index2 int) bool {
	if o1, o2 := l.indexToValue(index1), l.indexToValue(index2); o1 != nil && o2 != nil {
		return o1 == o2
	}
	return false
}

func (l *State) Compare(index1, index2, op int) bool {
	if o1, o2 := l.indexToValue(index1), l.indexToValue(index2); o1 != nil && o2 != nil {
		switch op {
		case OpEq:
			return l.equalObjects(o1, o2)
		case OpLT:
			return l.lessThan(o1, o2)
		case OpLE:
			return l.lessOrEqual(o1, o2)
		default:
			apiCheck(false, "invalid option")
		}
	}
	return false
}

func (l *State) ToNumber(index int) (float64, bool) {
	n, ok := toNumber(l.indexToValue(index))
	if !ok {
		return 0, false
	}
	f, _ := toFloat(n)
	return f, true
}

func (l *State) ToInteger(index int) (int, bool) {
	n, ok := toNumber(l.indexToValue(index))
	if !ok {
		return 0, false
	}
	if i, ok := n.(int64); ok {
		return int(i), true
	}
	if f, ok := n.(float64); ok {
		if i, ok := exactInt(f); ok {
			return int(i), true
		}
	}
	return 0, false
}

func (l *State) ToUnsigned(index int) (uint, bool) {
	n, ok := toNumber(l.indexToValue(index))
	if !ok {
		return 0, false
	}
	f, _ := toFloat(n)
	const supUnsigned = float64(^uint(0)) + 1
	return uint(f - math.Floor(f/supUnsigned)*supUnsigned), true
}

func (l *State) ToBoolean(index int) bool {
	return !isFalse(l.indexToValue(index))
}

func (l *State) ToString(index int) (string, bool) {
	v := l.indexToValue(index)
	if s, ok := v.(string); ok {
		return s, true
	}
	return toString(v)
}

func (l *State) RawLength(index int) int {
	switch v := l.indexToValue(index).(type) {
	case string:
		return len(v)
	// case *userData:
	// 	return reflect.Sizeof(v.data)
	case *table:
		return v.length()
	}
	return 0
}

func (l *State) ToGoFunction(index int) Function {
	switch v := l.indexToValue(index).(type) {
	case Function:
		return v
	case *goClosure:
		return v.function
	}
	return nil
}

func (l *State) ToUserData(index int) interface{} {
	if d, ok := l.indexToValue(index).(*userData); ok {
		return d.data
	}
	return nil
}

func (l *State) ToThread(index int) *State {
	if t, ok := l.indexToValue(index).(*State); ok {
		return t
	}
	return nil
}

func (l *State) ToInterface(index int) interface{} {
	v := l.indexToValue(index)
	switch v := v.(type) {
	case *table:
	case *luaClosure:
	case *goClosure:
	case Function:
	case *State:
	case *userData:
		return v.data
	default:
		return nil
	}
	return v
}

func (l *State) PushNil() {
	l.apiPush(nil)
}

func (l *State) PushNumber(n float64) {
	l.apiPush(n)
}

func (l *State) PushInteger(n int) {
	l.apiPush(int64(n))
}

func (l *State) PushUnsigned(n uint) {
	l.apiPush(int64(n))
}

func (l *State) PushString(s string) string { // TODO is it useful to return the argument?
	l.apiPush(s)
	return s
}

// this function handles only %d, %c, %f, %p, and %s formats
func (l *State) PushFString(format string, args ...interface{}) string {
	n, i := 0, 0
	for {
		e := strings.IndexRune(format, '%')
		if e < 0 {
			break
		}
		l.checkStack(2) // format + item
		l.push(format[:e])
		switch format[e+1] {
		case 's':
			if args[i] == nil {
				l.push("(null)")
			} else {
				l.push(args[i].(string))
			}
			i++
		case 'c':
			l.push(string(args[i].(rune)))
			i++
		case 'd':
			l.push(int64(args[i].(int)))
			i++
		case 'f':
			l.push(args[i].(float64))
			i++
		case 'p':
			l.push(fmt.Sprintf("%p", args[i]))
			i++
		case '%':
			l.push("%")
		default:
			l.runtimeError("invalid option " + format[e:e+2] + " to 'lua_pushfstring'")
		}
		n += 2
		format = format[e+2:]
	}
	l.checkStack(1)
	l.push(format)
	if n > 0 {
		l.concat(n + 1)
	}
	return l.stack[l.top-1].(string)
}

func (l *State) PushGoClosure(function Function, n int) {
	if n == 0 {
		l.apiPush(function)
	} else {
		l.checkElementCount(n)
		apiCheck(n <= maxUpValue, "upvalue index too large")
		cl := &goClosure{function: function, upValues: make([]value, n)}
		l.top -= n
		copy(cl.upValues, l.stack[l.top:l.top+n])
		l.apiPush(cl)
	}
}

func (l *State) PushBoolean(b bool) {
	l.apiPush(b)
}

func (l *State) PushLightUserData(d interface{}) {
	l.apiPush(d)
}

func (l *State) PushThread() bool {
	l.apiPush(l)
	return l.global.mainThread == l
}

func (l *State) Global(name string) {
	g := l.global.registry.atInt(RegistryIndexGlobals)
	l.push(name)
	l.stack[l.top-1] = l.tableAt(g, l.stack[l.top-1])
}

func (l *State) Table(index int) {
	l.stack[l.top-1] = l.tableAt(l.indexToValue(index), l.stack[l.top-1])
}

func (l *State) Field(index int, name string) {
	t := l.indexToValue(index)
	l.apiPush(name)
	l.stack[l.top-1] = l.tableAt(t, l.stack[l.top-1])
}

func (l *State) RawGet(index int) {
	t, ok := l.indexToValue(index).(*table)
	apiCheck(ok, "table expected")
	l.stack[l.top-1] = t.at(l.stack[l.top-1])
}

func (l *State) RawGetI(index, n int) {
	// TODO
}

func (l *State) RawGetP(index int, p interface{}) {
	// TODO
}

func (l *State) CreateTable(arrayCount, recordCount int) {
	l.apiPush(newTableWithSize(arrayCount, recordCount))
}

func (l *State) MetaTable(index int) bool {
	var mt *table
	switch v := l.indexToValue(index).(type) {
	case *table:
		mt = v.metaTable
	case *userData:
		mt = v.metaTable
	default:
		mt = l.global.metaTable(v)
	}
	if mt == nil {
		return false
	}
	l.apiPush(mt)
	return true
}

func (l *State) UserValue(index int) {
	d, ok := l.indexToValue(index).(*userData)
	apiCheck(ok, "userdata expected")
	l.apiPush(d.env)
}

func (l *State) SetGlobal(name string) {
	l.checkElementCount(1)
	g := l.global.registry.atInt(RegistryIndexGlobals)
	l.push(name)
	l.setTableAt(g, l.stack[l.top-1], l.stack[l.top-2])
	l.top -= 2 // pop value and key
}

func (l *State) RawSet(index int) {
	l.checkElementCount(2)
	t, ok := l.stack[index].(*table)
	apiCheck(ok, "table expected")
	t.put(l, l.stack[l.top-2], l.stack[l.top-1])
	t.invalidateTagMethodCache()
	l.top -= 2
}

func (l *State) SetMetaTable(index int) {
	l.checkElementCount(1)
	mt, ok := l.stack[l.top-1].(*table)
	apiCheck(ok || l.stack[l.top-1] == nil, "table expected")
	switch v := l.indexToValue(index).(type) {
	case *table:
		v.metaTable = mt
	case *userData:
		v.metaTable = mt
	default:
		l.global.metaTables[l.Type(index)] = mt
	}
	l.top--
}

func (l *State) Error() {
	l.checkElementCount(1)
	l.errorMessage()
}

func (l *State) Next(index int) bool {
	t, ok := l.indexToValue(index).(*table)
	apiCheck(ok, "table expected")
	if l.next(t, l.top-1) {
		l.apiIncrementTop()
		return true
	}
	// no more elements
	l.top-- // remove key
	return false
}

func (l *State) Concat(n int) {
	l.checkElementCount(n)
	if n >= 2 {
		l.concat(n)
	} else if n == 0 { // push empty string
		l.apiPush("")
	} // else n == 1; nothing to do
}

func (l *State) Length(index int) {
	l.apiPush(l.objectLength(l.indexToValue(index)))
}

func (l *State) Pop(n int) {
	l.SetTop(-n - 1)
}

func (l *State) NewTable() {
	l.CreateTable(0, 0)
}

func (l *State) Register(name string, f Function) {
	l.PushGoFunction(f)
	l.SetGlobal(name)
}

func (l *State) PushGoFunction(f Function) {
	l.PushGoClosure(f, 0)
}

func (l *State) IsFunction(index int) bool {
	return l.Type(index) == TypeFunction
}

func (l *State) IsTable(index int) bool {
	return l.Type(index) == TypeTable
}

func (l *State) IsLightUserData(index int) bool {
	return l.Type(index) == TypeLightUserData
}

func (l *State) IsNil(index int) bool {
	return l.Type(index) == TypeNil
}

func (l *State) IsBoolean(index int) bool {
	return l.Type(index) == TypeBoolean
}

func (l *State) IsThread(index int) bool {
	return l.Type(index) == TypeThread
}

func (l *State) IsNone(index int) bool {
	return l.Type(index) == TypeNone
}

func (l *State) IsNoneOrNil(index int) bool {
	return l.Type(index) <= TypeNil
}

func (l *State) PushGlobalTable() {
	l.RawGetInt(RegistryIndex, RegistryIndexGlobals)
}
