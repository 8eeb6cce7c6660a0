package lua

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// validHeader writes a well-formed Lua 5.3 binary chunk header to buf.
func validHeader(buf *bytes.Buffer) {
	buf.WriteString(Signature)
	buf.WriteByte(luacVersion)
	buf.WriteByte(luacFormat)
	buf.WriteString(luacData)
	buf.Write([]byte{4, 8, 4, 8, 8}) // int, size_t, Instruction, lua_Integer, lua_Number sizes
	binary.Write(buf, binary.LittleEndian, int64(luacInt))
	binary.Write(buf, binary.LittleEndian, float64(luacNum))
}

// emptyMainFunction appends a minimal, valid top-level prototype: no code,
// no constants, no nested prototypes, no upvalues, empty debug info.
func emptyMainFunction(buf *bytes.Buffer) {
	buf.WriteByte(0)                               // source name: nil
	binary.Write(buf, binary.LittleEndian, int32(0)) // lineDefined
	binary.Write(buf, binary.LittleEndian, int32(0)) // lastLineDefined
	buf.WriteByte(0)                               // parameterCount
	buf.WriteByte(1)                               // isVarArg
	buf.WriteByte(2)                               // maxStackSize
	binary.Write(buf, binary.LittleEndian, int32(0)) // code count
	binary.Write(buf, binary.LittleEndian, int32(0)) // constants count
	binary.Write(buf, binary.LittleEndian, int32(0)) // nested prototypes count
	binary.Write(buf, binary.LittleEndian, int32(0)) // upvalues count
	buf.WriteByte(0)                               // debug: source name nil
	binary.Write(buf, binary.LittleEndian, int32(0)) // debug: lineinfo count
	binary.Write(buf, binary.LittleEndian, int32(0)) // debug: local variable count
	binary.Write(buf, binary.LittleEndian, int32(0)) // debug: upvalue name count
}

func TestCheckHeaderValid(t *testing.T) {
	var buf bytes.Buffer
	validHeader(&buf)
	s := &loadState{&buf}
	if err := s.checkHeader(); err != nil {
		t.Errorf("expected a valid header to pass, got %v", err)
	}
}

func TestCheckHeaderBadSignature(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("nope")
	s := &loadState{&buf}
	if err := s.checkHeader(); err != errNotPrecompiledChunk {
		t.Errorf("expected errNotPrecompiledChunk, got %v", err)
	}
}

func TestCheckHeaderWrongVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(Signature)
	buf.WriteByte(luacVersion + 1)
	buf.WriteByte(luacFormat)
	s := &loadState{&buf}
	if err := s.checkHeader(); err != errVersionMismatch {
		t.Errorf("expected errVersionMismatch, got %v", err)
	}
}

func TestCheckHeaderCorruptData(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(Signature)
	buf.WriteByte(luacVersion)
	buf.WriteByte(luacFormat)
	buf.WriteString("wrongd")
	s := &loadState{&buf}
	if err := s.checkHeader(); err != errCorrupted {
		t.Errorf("expected errCorrupted, got %v", err)
	}
}

func TestCheckHeaderWrongIntegerSize(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(Signature)
	buf.WriteByte(luacVersion)
	buf.WriteByte(luacFormat)
	buf.WriteString(luacData)
	buf.Write([]byte{4, 8, 4, 4, 8}) // lua_Integer size wrong (4 instead of 8)
	s := &loadState{&buf}
	if err := s.checkHeader(); err != errIncompatibleFormat {
		t.Errorf("expected errIncompatibleFormat, got %v", err)
	}
}

func TestUndumpEmptyMain(t *testing.T) {
	var buf bytes.Buffer
	validHeader(&buf)
	emptyMainFunction(&buf)

	l := NewState()
	closure, err := l.undump(&buf, "=test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closure == nil {
		t.Fatal("closure was nil")
	}
	p := closure.prototype
	if p.source != "test" {
		t.Errorf("expected source %q, got %q", "test", p.source)
	}
	if !p.isVarArg {
		t.Error("expected main function to be var arg")
	}
	if len(p.code) != 0 || len(p.constants) != 0 || len(p.prototypes) != 0 || len(p.upValues) != 0 {
		t.Errorf("expected an empty prototype, got %+v", p)
	}
	if p.maxStackSize != 2 {
		t.Errorf("expected maxStackSize 2, got %d", p.maxStackSize)
	}
}

func TestReadStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(len("hello") + 1))
	buf.WriteString("hello")
	s := &loadState{&buf}
	got, err := s.readString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
}

func TestReadStringNil(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0)
	s := &loadState{&buf}
	got, err := s.readString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
