package lua

import (
	"encoding/binary"
	"errors"
	"io"
)

// loadState reads a Lua 5.3 binary chunk (.luac), always little-endian
// regardless of host architecture.
type loadState struct {
	in io.Reader
}

const (
	luacVersion = VersionMajor<<4 | VersionMinor
	luacFormat  = 0
	luacData    = "\x19\x93\r\n\x1a\n"
	luacInt     = 0x5678
	luacNum     = 370.5
)

// constant tag bytes, as written by lundump.c: the low nibble is the base
// value type, the high nibble distinguishes float/int and short/long string.
const (
	constTagNil     = 0x00
	constTagBoolean = 0x01
	constTagNumFlt  = 0x03
	constTagNumInt  = 0x13
	constTagShortStr = 0x04
	constTagLongStr  = 0x14
)

var (
	errNotPrecompiledChunk = errors.New("lua: not a precompiled chunk")
	errVersionMismatch     = errors.New("lua: version mismatch in precompiled chunk")
	errCorrupted           = errors.New("lua: corrupted precompiled chunk")
	errUnknownConstantType = errors.New("lua: unknown constant type in precompiled chunk")
)

func (state *loadState) read(data interface{}) error {
	return binary.Read(state.in, binary.LittleEndian, data)
}

func (state *loadState) readByte() (b byte, err error) {
	err = state.read(&b)
	return
}

func (state *loadState) readBool() (bool, error) {
	b, err := state.readByte()
	return b != 0, err
}

func (state *loadState) readInt32() (i int32, err error) {
	err = state.read(&i)
	return
}

func (state *loadState) readPC() (pc, error) {
	i, err := state.readInt32()
	return pc(i), err
}

func (state *loadState) readInteger() (i int64, err error) {
	err = state.read(&i)
	return
}

func (state *loadState) readNumber() (f float64, err error) {
	err = state.read(&f)
	return
}

// readString decodes a Lua 5.3 length-prefixed string: a size byte (0 means
// nil/empty; 0xFF signals that an 8-byte size follows), then size-1 raw
// bytes (not nul-terminated).
func (state *loadState) readString() (s string, err error) {
	b, err := state.readByte()
	if err != nil {
		return
	}
	size := uint64(b)
	if b == 0xff {
		if err = state.read(&size); err != nil {
			return
		}
	}
	if size == 0 {
		return "", nil
	}
	size--
	buf := make([]byte, size)
	if size > 0 {
		if err = state.read(buf); err != nil {
			return
		}
	}
	return string(buf), nil
}

func (state *loadState) readCode() (code []instruction, err error) {
	n, err := state.readInt32()
	if err != nil || n == 0 {
		return
	}
	code = make([]instruction, n)
	err = state.read(code)
	return
}

func (state *loadState) readUpValues() (u []upValueDesc, err error) {
	n, err := state.readInt32()
	if err != nil || n == 0 {
		return
	}
	v := make([]struct{ IsLocal, Index byte }, n)
	if err = state.read(v); err != nil {
		return
	}
	u = make([]upValueDesc, n)
	for i := range v {
		u[i].isLocal, u[i].index = v[i].IsLocal != 0, int(v[i].Index)
	}
	return
}

func (state *loadState) readLocalVariables() (localVariables []localVariable, err error) {
	var n int32
	if n, err = state.readInt32(); err != nil || n == 0 {
		return
	}
	localVariables = make([]localVariable, n)
	for i := range localVariables {
		if localVariables[i].name, err = state.readString(); err != nil {
			return
		}
		if localVariables[i].startPC, err = state.readPC(); err != nil {
			return
		}
		if localVariables[i].endPC, err = state.readPC(); err != nil {
			return
		}
	}
	return
}

func (state *loadState) readLineInfo() (lineInfo []int32, err error) {
	var n int32
	if n, err = state.readInt32(); err != nil || n == 0 {
		return
	}
	lineInfo = make([]int32, n)
	err = state.read(lineInfo)
	return
}

func (state *loadState) readDebug(p *prototype) (source string, lineInfo []int32, localVariables []localVariable, names []string, err error) {
	var n int32
	if source, err = state.readString(); err != nil {
		return
	}
	if lineInfo, err = state.readLineInfo(); err != nil {
		return
	}
	if localVariables, err = state.readLocalVariables(); err != nil {
		return
	}
	if n, err = state.readInt32(); err != nil {
		return
	}
	names = make([]string, n)
	for i := range names {
		if names[i], err = state.readString(); err != nil {
			return
		}
	}
	return
}

func (state *loadState) readConstants() (constants []value, err error) {
	var n int32
	if n, err = state.readInt32(); err != nil || n == 0 {
		return
	}
	constants = make([]value, n)
	for i := range constants {
		var t byte
		if t, err = state.readByte(); err != nil {
			return
		}
		switch t {
		case constTagNil:
			constants[i] = nil
		case constTagBoolean:
			constants[i], err = state.readBool()
		case constTagNumFlt:
			constants[i], err = state.readNumber()
		case constTagNumInt:
			constants[i], err = state.readInteger()
		case constTagShortStr, constTagLongStr:
			constants[i], err = state.readString()
		default:
			err = errUnknownConstantType
		}
		if err != nil {
			return
		}
	}
	return
}

func (state *loadState) readPrototypes(source string) (prototypes []prototype, err error) {
	var n int32
	if n, err = state.readInt32(); err != nil || n == 0 {
		return
	}
	prototypes = make([]prototype, n)
	for i := range prototypes {
		if prototypes[i], err = state.readFunction(source); err != nil {
			return
		}
	}
	return
}

func (state *loadState) readFunction(parentSource string) (p prototype, err error) {
	var src string
	if src, err = state.readString(); err != nil {
		return
	}
	if src == "" {
		src = parentSource
	}
	p.source = src
	var n int32
	if n, err = state.readInt32(); err != nil {
		return
	}
	p.lineDefined = int(n)
	if n, err = state.readInt32(); err != nil {
		return
	}
	p.lastLineDefined = int(n)
	var b byte
	if b, err = state.readByte(); err != nil {
		return
	}
	p.parameterCount = int(b)
	if b, err = state.readByte(); err != nil {
		return
	}
	p.isVarArg = b != 0
	if b, err = state.readByte(); err != nil {
		return
	}
	p.maxStackSize = int(b)
	if p.code, err = state.readCode(); err != nil {
		return
	}
	if p.constants, err = state.readConstants(); err != nil {
		return
	}
	if p.prototypes, err = state.readPrototypes(src); err != nil {
		return
	}
	if p.upValues, err = state.readUpValues(); err != nil {
		return
	}
	var names []string
	if _, p.lineInfo, p.localVariables, names, err = state.readDebug(&p); err != nil {
		return
	}
	for i := range names {
		if i < len(p.upValues) {
			p.upValues[i].name = names[i]
		}
	}
	return
}

// checkHeader validates the 33-byte Lua 5.3 binary chunk header: signature,
// version, format, the literal check bytes, the size of each encoded field,
// and the integer/number check values (which also validate endianness and
// the precision used by the writer).
func (state *loadState) checkHeader() error {
	var sig [4]byte
	if err := state.read(&sig); err != nil {
		return err
	}
	if string(sig[:]) != Signature {
		return errNotPrecompiledChunk
	}
	var version, format byte
	if err := state.read(&version); err != nil {
		return err
	}
	if err := state.read(&format); err != nil {
		return err
	}
	if version != luacVersion || format != luacFormat {
		return errVersionMismatch
	}
	var data [6]byte
	if err := state.read(&data); err != nil {
		return err
	}
	if string(data[:]) != luacData {
		return errCorrupted
	}
	var sizes [5]byte // int, size_t, Instruction, lua_Integer, lua_Number
	if err := state.read(&sizes); err != nil {
		return err
	}
	if sizes[0] != 4 || sizes[2] != 4 || sizes[3] != 8 || sizes[4] != 8 {
		return errIncompatibleFormat
	}
	i, err := state.readInteger()
	if err != nil {
		return err
	}
	if i != luacInt {
		return errCorrupted // wrong endianness or integer size
	}
	f, err := state.readNumber()
	if err != nil {
		return err
	}
	if f != luacNum {
		return errCorrupted // wrong floating point format
	}
	return nil
}

var errIncompatibleFormat = errors.New("lua: incompatible precompiled chunk")

func (l *State) undump(in io.Reader, name string) (c *luaClosure, err error) {
	if len(name) > 0 && (name[0] == '@' || name[0] == '=') {
		name = name[1:]
	} else if len(name) > 0 && name[0] == Signature[0] {
		name = "binary string"
	}
	s := &loadState{in}
	if err = s.checkHeader(); err != nil {
		return
	}
	// The main chunk's single upvalue count byte precedes its prototype body
	// in the reference dumper, but go-lua's encoder (and this reader) treats
	// the top-level prototype identically to nested ones.
	var p prototype
	if p, err = s.readFunction(name); err != nil {
		return
	}
	if p.source == "" {
		p.source = name
	}
	c = l.newLuaClosure(&p)
	l.push(c)
	return
}
