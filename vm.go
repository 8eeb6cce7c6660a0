package lua

import (
	"fmt"
	"strings"
)

// arith performs a binary arithmetic or bitwise operator given two
// already-evaluated operands, coercing numeral strings first and falling
// back to the matching metamethod when the operands are not both numbers or
// the operation is undefined for them (e.g. a bitwise op on a non-integral float).
func (l *State) arith(rb, rc value, op tm) value {
	if b, ok := l.toNumber(rb); ok {
		if c, ok := l.toNumber(rc); ok {
			if result, ok := arith(int(op-tmAdd)+OpAdd, b, c); ok {
				return result
			}
		}
	}
	if result, ok := l.callBinaryTagMethod(rb, rc, op); ok {
		return result
	}
	l.arithError(rb, rc)
	return nil
}

func (l *State) tableAt(t value, key value) value {
	for loop := 0; loop < maxTagLoop; loop++ {
		var tm value
		if table, ok := t.(*table); ok {
			if result := table.at(key); result != nil {
				return result
			} else if tm = l.fastTagMethod(table.metaTable, tmIndex); tm == nil {
				return nil
			}
		} else if tm = l.tagMethodByObject(t, tmIndex); tm == nil {
			l.typeError(t, "index")
		}
		switch tm.(type) {
		case *luaClosure, *goClosure:
			return l.callTagMethod(tm, t, key)
		}
		t = tm
	}
	l.runtimeError("loop in table")
	return nil
}

func (l *State) setTableAt(t value, key value, val value) {
	for loop := 0; loop < maxTagLoop; loop++ {
		var tm value
		if table, ok := t.(*table); ok {
			if table.tryPut(l, key, val) {
				// previous non-nil value ==> metamethod irrelevant
				table.invalidateTagMethodCache()
				return
			} else if tm = l.fastTagMethod(table.metaTable, tmNewIndex); tm == nil {
				// no metamethod
				table.put(l, key, val)
				table.invalidateTagMethodCache()
				return
			}
		} else if tm = l.tagMethodByObject(t, tmNewIndex); tm == nil {
			l.typeError(t, "index")
		}
		switch tm.(type) {
		case *luaClosure, *goClosure:
			l.callTagMethodV(tm, t, key, val)
			return
		}
		t = tm
	}
	l.runtimeError("loop in setTable")
}

func (l *State) objectLength(v value) value {
	var tm value
	switch v := v.(type) {
	case *table:
		if tm = l.fastTagMethod(v.metaTable, tmLen); tm == nil {
			return int64(v.length())
		}
	case string:
		return int64(len(v))
	default:
		if tm = l.tagMethodByObject(v, tmLen); tm == nil {
			l.typeError(v, "get length of")
		}
	}
	return l.callTagMethod(tm, v, v)
}

func (l *State) equalTagMethod(mt1, mt2 *table, event tm) value {
	if tm1 := l.fastTagMethod(mt1, event); tm1 == nil { // no metamethod
	} else if mt1 == mt2 { // same metatables => same metamethods
		return tm1
	} else if tm2 := l.fastTagMethod(mt2, event); tm2 == nil { // no metamethod
	} else if tm1 == tm2 { // same metamethods
		return tm1
	}
	return nil
}

func (l *State) equalObjects(t1, t2 value) bool {
	if n1, ok := isInteger(t1); ok {
		if n2, ok := isInteger(t2); ok {
			return n1 == n2
		}
		if f2, ok := t2.(float64); ok {
			return float64(n1) == f2
		}
		return false
	}
	if f1, ok := t1.(float64); ok {
		if n2, ok := isInteger(t2); ok {
			return f1 == float64(n2)
		}
	}
	var tm value
	switch t1 := t1.(type) {
	case *userData:
		if t1 == t2 {
			return true
		} else if t2, ok := t2.(*userData); ok {
			tm = l.equalTagMethod(t1.metaTable, t2.metaTable, tmEq)
		}
	case *table:
		if t1 == t2 {
			return true
		} else if t2, ok := t2.(*table); ok {
			tm = l.equalTagMethod(t1.metaTable, t2.metaTable, tmEq)
		}
	default:
		return t1 == t2
	}
	return tm != nil && !isFalse(l.callTagMethod(tm, t1, t2))
}

func (l *State) callBinaryTagMethod(p1, p2 value, event tm) (value, bool) {
	tm := l.tagMethodByObject(p1, event)
	if tm == nil {
		tm = l.tagMethodByObject(p2, event)
	}
	if tm == nil {
		return nil, false
	}
	return l.callTagMethod(tm, p1, p2), true
}

func (l *State) callOrderTagMethod(left, right value, event tm) (bool, bool) {
	result, ok := l.callBinaryTagMethod(left, right, event)
	return !isFalse(result), ok
}

func (l *State) lessThan(left, right value) bool {
	if lf, ok := toFloat(left); ok {
		if li, isInt := left.(int64); isInt {
			if ri, ok := right.(int64); ok {
				return li < ri
			}
		}
		if rf, ok := toFloat(right); ok {
			return lf < rf
		}
	} else if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			return ls < rs
		}
	}
	if result, ok := l.callOrderTagMethod(left, right, tmLT); ok {
		return result
	}
	l.orderError(left, right)
	return false
}

func (l *State) lessOrEqual(left, right value) bool {
	if lf, ok := toFloat(left); ok {
		if li, isInt := left.(int64); isInt {
			if ri, ok := right.(int64); ok {
				return li <= ri
			}
		}
		if rf, ok := toFloat(right); ok {
			return lf <= rf
		}
	} else if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			return ls <= rs
		}
	}
	if result, ok := l.callOrderTagMethod(left, right, tmLE); ok {
		return result
	} else if result, ok := l.callOrderTagMethod(right, left, tmLT); ok {
		return !result
	}
	l.orderError(left, right)
	return false
}

func (l *State) concat(total int) {
	t := func(i int) value { return l.stack[l.top-i] }
	put := func(i int, v value) { l.stack[l.top-i] = v }
	concatTagMethod := func() {
		if v, ok := l.callBinaryTagMethod(t(2), t(1), tmConcat); !ok {
			l.concatError(t(2), t(1))
		} else {
			put(2, v)
		}
	}
	l.assert(total >= 2)
	for total > 1 {
		n := 2 // # of elements handled in this pass (at least 2)
		_, isStr := t(2).(string)
		_, isInt := t(2).(int64)
		_, isFloat := t(2).(float64)
		ok := isStr || isInt || isFloat
		if !ok {
			concatTagMethod()
		} else if s1, ok := l.toString(l.top - 1); !ok {
			concatTagMethod()
		} else if len(s1) == 0 {
			v, _ := l.toString(l.top - 2)
			put(2, v)
		} else if s2, ok := t(2).(string); ok && len(s2) == 0 {
			put(2, t(1))
		} else {
			// at least 2 non-empty strings; scarf as many as possible
			ss := []string{s1}
			for ; n <= total; n++ {
				if s, ok := l.toString(l.top - n); ok {
					ss = append(ss, s)
				} else {
					break
				}
			}
			n-- // last increment wasn't valid
			for i, j := 0, len(ss)-1; i < j; i, j = i+1, j-1 {
				ss[i], ss[j] = ss[j], ss[i]
			}
			put(len(ss), strings.Join(ss, ""))
		}
		total -= n - 1 // created 1 new string from `n` strings
		l.top -= n - 1 // popped `n` strings and pushed 1
	}
}

func (l *State) traceExecution() {
	callInfo := l.callInfo
	mask := l.hookMask
	countHook := mask&MaskCount != 0 && l.hookCount == 0
	if countHook {
		l.resetHookCount()
	}
	if callInfo.isCallStatus(callStatusHookYielded) {
		callInfo.clearCallStatus(callStatusHookYielded)
		return
	}
	if countHook {
		l.hook(HookCount, -1)
	}
	if mask&MaskLine != 0 {
		ci := callInfo.(*luaCallInfo)
		p := l.prototype(callInfo)
		npc := ci.savedPC - 1
		newline := p.lineInfo[npc]
		if npc == 0 || ci.savedPC <= l.oldPC || newline != p.lineInfo[l.oldPC-1] {
			l.hook(HookLine, int(newline))
		}
	}
	l.oldPC = callInfo.(*luaCallInfo).savedPC
}

func clear(r []value) {
	for i := range r {
		r[i] = nil
	}
}

func k(field int, constants []value, frame []value) value {
	if 0 != field&bitRK { // OPT: Inline isConstant(field).
		return constants[field & ^bitRK] // OPT: Inline constantIndex(field).
	}
	return frame[field]
}

func newFrame(l *State, ci callInfo) (frame []value, closure *luaClosure, constants []value) {
	lci := ci.(*luaCallInfo)
	frame = lci.frame
	closure, _ = l.stack[ci.function()].(*luaClosure)
	constants = closure.prototype.constants
	return
}

func expectNext(ci callInfo, expected opCode) instruction {
	lci := ci.(*luaCallInfo)
	i := lci.step() // go to next instruction
	if op := i.opCode(); op != expected {
		panic(fmt.Sprintf("expected opcode %s, got %s", opNames[expected], opNames[op]))
	}
	return i
}

// numAdd, numSub and numMul are the fast paths for the three operators that
// preserve the int/float subtype distinction when both operands agree.
func numAdd(a, b value) (value, bool) {
	if ai, ok := a.(int64); ok {
		if bi, ok := b.(int64); ok {
			return ai + bi, true
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af + bf, true
		}
	}
	return nil, false
}

func numSub(a, b value) (value, bool) {
	if ai, ok := a.(int64); ok {
		if bi, ok := b.(int64); ok {
			return ai - bi, true
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af - bf, true
		}
	}
	return nil, false
}

func numMul(a, b value) (value, bool) {
	if ai, ok := a.(int64); ok {
		if bi, ok := b.(int64); ok {
			return ai * bi, true
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af * bf, true
		}
	}
	return nil, false
}

func (l *State) execute() {
	ci := l.callInfo
	frame, closure, constants := newFrame(l, ci)
	for {
		if l.hookMask&(MaskLine|MaskCount) != 0 {
			if l.hookCount--; l.hookCount == 0 || l.hookMask&MaskLine != 0 {
				l.traceExecution()
				frame = ci.(*luaCallInfo).frame
			}
		}
		lci := ci.(*luaCallInfo)
		switch i := lci.step(); i.opCode() {
		case opMove:
			frame[i.a()] = frame[i.b()]
		case opLoadConstant:
			frame[i.a()] = constants[i.bx()]
		case opLoadConstantEx:
			frame[i.a()] = constants[expectNext(ci, opExtraArg).ax()]
		case opLoadBool:
			frame[i.a()] = i.b() != 0
			if i.c() != 0 {
				lci.skip()
			}
		case opLoadNil:
			a, b := i.a(), i.b()
			clear(frame[a : a+b+1])
		case opGetUpValue:
			frame[i.a()] = closure.upValue(i.b())
		case opGetTableUp:
			tmp := l.tableAt(closure.upValue(i.b()), k(i.c(), constants, frame))
			frame = ci.(*luaCallInfo).frame
			frame[i.a()] = tmp
		case opGetTable:
			tmp := l.tableAt(frame[i.b()], k(i.c(), constants, frame))
			frame = ci.(*luaCallInfo).frame
			frame[i.a()] = tmp
		case opSetTableUp:
			l.setTableAt(closure.upValue(i.a()), k(i.b(), constants, frame), k(i.c(), constants, frame))
			frame = ci.(*luaCallInfo).frame
		case opSetUpValue:
			closure.setUpValue(i.b(), frame[i.a()])
		case opSetTable:
			l.setTableAt(frame[i.a()], k(i.b(), constants, frame), k(i.c(), constants, frame))
			frame = ci.(*luaCallInfo).frame
		case opNewTable:
			a := i.a()
			if b, c := float8(i.b()), float8(i.c()); b != 0 || c != 0 {
				frame[a] = newTableWithSize(intFromFloat8(b), intFromFloat8(c))
			} else {
				frame[a] = newTable()
			}
			clear(frame[a+1:])
		case opSelf:
			a, t := i.a(), frame[i.b()]
			tmp := l.tableAt(t, k(i.c(), constants, frame))
			frame = ci.(*luaCallInfo).frame
			frame[a+1], frame[a] = t, tmp
		case opAdd:
			b := k(i.b(), constants, frame)
			c := k(i.c(), constants, frame)
			if v, ok := numAdd(b, c); ok {
				frame[i.a()] = v
				break
			}
			tmp := l.arith(b, c, tmAdd)
			frame = ci.(*luaCallInfo).frame
			frame[i.a()] = tmp
		case opSub:
			b := k(i.b(), constants, frame)
			c := k(i.c(), constants, frame)
			if v, ok := numSub(b, c); ok {
				frame[i.a()] = v
				break
			}
			tmp := l.arith(b, c, tmSub)
			frame = ci.(*luaCallInfo).frame
			frame[i.a()] = tmp
		case opMul:
			b := k(i.b(), constants, frame)
			c := k(i.c(), constants, frame)
			if v, ok := numMul(b, c); ok {
				frame[i.a()] = v
				break
			}
			tmp := l.arith(b, c, tmMul)
			frame = ci.(*luaCallInfo).frame
			frame[i.a()] = tmp
		case opDiv:
			b := k(i.b(), constants, frame)
			c := k(i.c(), constants, frame)
			if nb, ok := toFloat(b); ok {
				if nc, ok := toFloat(c); ok {
					frame[i.a()] = nb / nc
					break
				}
			}
			tmp := l.arith(b, c, tmDiv)
			frame = ci.(*luaCallInfo).frame
			frame[i.a()] = tmp
		case opMod:
			b := k(i.b(), constants, frame)
			c := k(i.c(), constants, frame)
			if v, ok := arith(OpMod, b, c); ok {
				frame[i.a()] = v
				break
			}
			tmp := l.arith(b, c, tmMod)
			frame = ci.(*luaCallInfo).frame
			frame[i.a()] = tmp
		case opPow:
			b := k(i.b(), constants, frame)
			c := k(i.c(), constants, frame)
			if v, ok := arith(OpPow, b, c); ok {
				frame[i.a()] = v
				break
			}
			tmp := l.arith(b, c, tmPow)
			frame = ci.(*luaCallInfo).frame
			frame[i.a()] = tmp
		case opIDiv:
			b := k(i.b(), constants, frame)
			c := k(i.c(), constants, frame)
			if v, ok := arith(OpIDiv, b, c); ok {
				frame[i.a()] = v
				break
			}
			tmp := l.arith(b, c, tmIDiv)
			frame = ci.(*luaCallInfo).frame
			frame[i.a()] = tmp
		case opBAnd:
			b := k(i.b(), constants, frame)
			c := k(i.c(), constants, frame)
			if v, ok := arith(OpBAnd, b, c); ok {
				frame[i.a()] = v
				break
			}
			tmp := l.arith(b, c, tmBAnd)
			frame = ci.(*luaCallInfo).frame
			frame[i.a()] = tmp
		case opBOr:
			b := k(i.b(), constants, frame)
			c := k(i.c(), constants, frame)
			if v, ok := arith(OpBOr, b, c); ok {
				frame[i.a()] = v
				break
			}
			tmp := l.arith(b, c, tmBOr)
			frame = ci.(*luaCallInfo).frame
			frame[i.a()] = tmp
		case opBXor:
			b := k(i.b(), constants, frame)
			c := k(i.c(), constants, frame)
			if v, ok := arith(OpBXor, b, c); ok {
				frame[i.a()] = v
				break
			}
			tmp := l.arith(b, c, tmBXor)
			frame = ci.(*luaCallInfo).frame
			frame[i.a()] = tmp
		case opShl:
			b := k(i.b(), constants, frame)
			c := k(i.c(), constants, frame)
			if v, ok := arith(OpShl, b, c); ok {
				frame[i.a()] = v
				break
			}
			tmp := l.arith(b, c, tmShl)
			frame = ci.(*luaCallInfo).frame
			frame[i.a()] = tmp
		case opShr:
			b := k(i.b(), constants, frame)
			c := k(i.c(), constants, frame)
			if v, ok := arith(OpShr, b, c); ok {
				frame[i.a()] = v
				break
			}
			tmp := l.arith(b, c, tmShr)
			frame = ci.(*luaCallInfo).frame
			frame[i.a()] = tmp
		case opUnaryMinus:
			b := frame[i.b()]
			if bi, ok := b.(int64); ok {
				frame[i.a()] = -bi
			} else if bf, ok := b.(float64); ok {
				frame[i.a()] = -bf
			} else {
				tmp := l.arith(b, b, tmUnaryMinus)
				frame = ci.(*luaCallInfo).frame
				frame[i.a()] = tmp
			}
		case opBNot:
			b := frame[i.b()]
			if v, ok := arith(OpBNot, b, b); ok {
				frame[i.a()] = v
			} else {
				tmp := l.arith(b, b, tmBNot)
				frame = ci.(*luaCallInfo).frame
				frame[i.a()] = tmp
			}
		case opNot:
			frame[i.a()] = isFalse(frame[i.b()])
		case opLength:
			tmp := l.objectLength(frame[i.b()])
			frame = ci.(*luaCallInfo).frame
			frame[i.a()] = tmp
		case opConcat:
			a, b, c := i.a(), i.b(), i.c()
			l.top = ci.stackIndex(c + 1) // mark the end of concat operands
			l.concat(c - b + 1)
			frame = ci.(*luaCallInfo).frame
			frame[a] = frame[b]
			if a >= b { // limit of live values
				clear(frame[a+1:])
			} else {
				clear(frame[b:])
			}
		case opJump:
			if a := i.a(); a > 0 {
				l.close(ci.stackIndex(a - 1))
			}
			lci.jump(i.sbx())
		case opEqual:
			test := i.a() != 0
			if l.equalObjects(k(i.b(), constants, frame), k(i.c(), constants, frame)) == test {
				i := lci.step()
				if a := i.a(); a > 0 {
					l.close(ci.stackIndex(a - 1))
				}
				lci.jump(i.sbx())
			} else {
				lci.skip()
			}
			frame = ci.(*luaCallInfo).frame
		case opLessThan:
			test := i.a() != 0
			if l.lessThan(k(i.b(), constants, frame), k(i.c(), constants, frame)) == test {
				i := lci.step()
				if a := i.a(); a > 0 {
					l.close(ci.stackIndex(a - 1))
				}
				lci.jump(i.sbx())
			} else {
				lci.skip()
			}
			frame = ci.(*luaCallInfo).frame
		case opLessOrEqual:
			test := i.a() != 0
			if l.lessOrEqual(k(i.b(), constants, frame), k(i.c(), constants, frame)) == test {
				i := lci.step()
				if a := i.a(); a > 0 {
					l.close(ci.stackIndex(a - 1))
				}
				lci.jump(i.sbx())
			} else {
				lci.skip()
			}
			frame = ci.(*luaCallInfo).frame
		case opTest:
			test := i.c() == 0
			if isFalse(frame[i.a()]) == test {
				i := lci.step()
				if a := i.a(); a > 0 {
					l.close(ci.stackIndex(a - 1))
				}
				lci.jump(i.sbx())
			} else {
				lci.skip()
			}
		case opTestSet:
			b := frame[i.b()]
			test := i.c() == 0
			if isFalse(b) == test {
				frame[i.a()] = b
				i := lci.step()
				if a := i.a(); a > 0 {
					l.close(ci.stackIndex(a - 1))
				}
				lci.jump(i.sbx())
			} else {
				lci.skip()
			}
		case opCall:
			a, b, c := i.a(), i.b(), i.c()
			if b != 0 {
				l.top = ci.stackIndex(a + b)
			} // else previous instruction set top
			if n := c - 1; l.preCall(ci.stackIndex(a), int16(n)) { // go function
				if n >= 0 {
					l.top = ci.top() // adjust results
				}
				frame = ci.(*luaCallInfo).frame
			} else { // lua function
				ci = l.callInfo
				ci.setCallStatus(callStatusReentry)
				frame, closure, constants = newFrame(l, ci)
			}
		case opTailCall:
			a, b := i.a(), i.b()
			if b != 0 {
				l.top = ci.stackIndex(a + b)
			} // else previous instruction set top
			if l.preCall(ci.stackIndex(a), MultipleReturns) { // go function
				frame = ci.(*luaCallInfo).frame
			} else {
				// tail call: put called frame (n) in place of caller one (o)
				nci := l.callInfo.(*luaCallInfo) // called frame
				oci := nci.previous().(*luaCallInfo)
				nfn, ofn := nci.function(), oci.function()
				// last stack slot filled by 'precall'
				lim := nci.base() + l.stack[nfn].(*luaClosure).prototype.parameterCount
				if len(closure.prototype.prototypes) > 0 { // close all upvalues from previous call
					l.close(oci.base())
				}
				// move new frame into old one
				for i := 0; nfn+i < lim; i++ {
					l.stack[ofn+i] = l.stack[nfn+i]
				}
				base := ofn + (nci.base() - nfn) // correct base
				oci.setTop(ofn + (l.top - nfn))  // correct top
				oci.frame = l.stack[base:oci.top()]
				oci.savedPC, oci.code = nci.savedPC, nci.code // correct code (savedPC indexes nci's code)
				oci.setCallStatus(callStatusTail)             // function was tail called
				l.top, l.callInfo, ci = oci.top(), oci, oci
				frame, closure, constants = newFrame(l, ci)
			}
		case opReturn:
			a := i.a()
			if b := i.b(); b != 0 {
				l.top = ci.stackIndex(a + b - 1)
			}
			if len(closure.prototype.prototypes) > 0 {
				l.close(ci.base())
			}
			n := l.postCall(ci.stackIndex(a))
			if !ci.isCallStatus(callStatusReentry) { // ci still the called one?
				return // external invocation: return
			}
			ci = l.callInfo
			if n {
				l.top = ci.top()
			}
			frame, closure, constants = newFrame(l, ci)
		case opForLoop:
			a := i.a()
			if index, okI := frame[a+0].(int64); okI {
				limit, step := frame[a+1].(int64), frame[a+2].(int64)
				if index += step; (0 < step && index <= limit) || (step <= 0 && limit <= index) {
					lci.jump(i.sbx())
					frame[a+0] = index
					frame[a+3] = index
				}
				break
			}
			index, limit, step := frame[a+0].(float64), frame[a+1].(float64), frame[a+2].(float64)
			if index += step; (0 < step && index <= limit) || (step <= 0 && limit <= index) {
				lci.jump(i.sbx())
				frame[a+0] = index // update internal index...
				frame[a+3] = index // ... and external index
			}
		case opForPrep:
			a := i.a()
			init, initOk := l.toNumber(frame[a+0])
			limit, limitOk := l.toNumber(frame[a+1])
			step, stepOk := l.toNumber(frame[a+2])
			if !initOk {
				l.runtimeError("'for' initial value must be a number")
			} else if !limitOk {
				l.runtimeError("'for' limit must be a number")
			} else if !stepOk {
				l.runtimeError("'for' step must be a number")
			} else if ii, okI := init.(int64); okI {
				is, okS := step.(int64)
				il, okL := limit.(int64)
				if okS && okL {
					frame[a+0], frame[a+1], frame[a+2] = ii-is, il, is
				} else {
					fi, _ := toFloat(init)
					fl, _ := toFloat(limit)
					fs, _ := toFloat(step)
					frame[a+0], frame[a+1], frame[a+2] = fi-fs, fl, fs
				}
				lci.jump(i.sbx())
			} else {
				fi, _ := toFloat(init)
				fl, _ := toFloat(limit)
				fs, _ := toFloat(step)
				frame[a+0], frame[a+1], frame[a+2] = fi-fs, fl, fs
				lci.jump(i.sbx())
			}
		case opTForCall:
			a := i.a()
			callBase := a + 3
			copy(frame[callBase:callBase+3], frame[a:a+3])
			callBase += ci.base()
			l.top = callBase + 3 // function + 2 args (state and index)
			l.call(callBase, int16(i.c()), true)
			frame, l.top = ci.(*luaCallInfo).frame, ci.top()
			i = expectNext(ci, opTForLoop) // go to next instruction
			fallthrough
		case opTForLoop:
			if a := i.a(); frame[a+1] != nil { // continue loop?
				frame[a] = frame[a+1] // save control variable
				lci.jump(i.sbx())     // jump back
			}
		case opSetList:
			a, n, c := i.a(), i.b(), i.c()
			if n == 0 {
				n = l.top - ci.stackIndex(a) - 1
			}
			if c == 0 {
				c = expectNext(ci, opExtraArg).ax()
			}
			h := frame[a].(*table)
			start := (c - 1) * listItemsPerFlush
			last := start + n
			if last > len(h.array) {
				h.extendArray(last)
			}
			copy(h.array[start:last], frame[a+1:a+1+n])
			l.top = ci.top()
		case opClosure:
			a, p := i.a(), &closure.prototype.prototypes[i.bx()]
			if ncl := cached(p, closure.upValues, ci.base()); ncl == nil { // no match?
				frame[a] = l.newClosure(p, closure.upValues, ci.base()) // create a new one
			} else {
				frame[a] = ncl
			}
			clear(frame[a+1:])
		case opVarArg:
			a, b := i.a(), i.b()-1
			n := ci.base() - ci.function() - closure.prototype.parameterCount - 1
			if b < 0 {
				b = n // get all var arguments
				l.checkStack(n)
				l.top = ci.base() + a + n
				if ci.top() < l.top {
					ci.setTop(l.top)
					lci.frame = l.stack[ci.base():ci.top()]
				}
				frame = ci.(*luaCallInfo).frame
			}
			for j := 0; j < b; j++ {
				if j < n {
					frame[a+j] = l.stack[ci.base()-n+j]
				} else {
					frame[a+j] = nil
				}
			}
		case opExtraArg:
			panic(fmt.Sprintf("unexpected opExtraArg instruction, '%s'", i.String()))
		}
	}
}
