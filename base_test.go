package lua

import "testing"

func TestHello(t *testing.T) {
	l := NewState()
	BaseOpen(l)
	LoadString(l, `print("Hello World!")`)
	l.Call(0, 0)
}

func TestBaseType(t *testing.T) {
	testString(t, `
	assert(type(nil) == "nil")
	assert(type(true) == "boolean")
	assert(type(1) == "number")
	assert(type("s") == "string")
	assert(type({}) == "table")
	assert(type(print) == "function")
	`)
}

func TestBaseToString(t *testing.T) {
	testString(t, `
	assert(tostring(1) == "1")
	assert(tostring(nil) == "nil")
	assert(tostring(true) == "true")
	`)
}

func TestBaseToNumber(t *testing.T) {
	testString(t, `
	assert(tonumber("10") == 10)
	assert(tonumber("1010", 2) == 10)
	assert(tonumber("not a number") == nil)
	`)
}

func TestBaseSelect(t *testing.T) {
	testString(t, `
	assert(select("#", 1, 2, 3) == 3)
	assert(select(2, "a", "b", "c") == "b")
	`)
}

func TestBaseRawOperations(t *testing.T) {
	testString(t, `
	local t = setmetatable({}, {__index = function() return "meta" end})
	assert(t.missing == "meta")
	assert(rawget(t, "missing") == nil)
	rawset(t, "missing", "direct")
	assert(rawget(t, "missing") == "direct")
	assert(rawequal(t, t))
	assert(not rawequal({}, {}))
	`)
}

func TestBaseGetSetMetaTable(t *testing.T) {
	testString(t, `
	local t = {}
	assert(getmetatable(t) == nil)
	local mt = {}
	setmetatable(t, mt)
	assert(getmetatable(t) == mt)
	`)
}

func TestBaseNextAndPairs(t *testing.T) {
	testString(t, `
	local t = {10, 20, 30}
	local sum = 0
	for i, v in ipairs(t) do
		sum = sum + v
	end
	assert(sum == 60)

	local k, v = next(t)
	assert(k ~= nil)

	local count = 0
	for k, v in pairs(t) do
		count = count + 1
	end
	assert(count == 3)
	`)
}

func TestBasePCall(t *testing.T) {
	testString(t, `
	local ok, err = pcall(function() error("boom") end)
	assert(not ok)

	local ok2, v = pcall(function() return 42 end)
	assert(ok2 and v == 42)
	`)
}

func TestBaseXPCall(t *testing.T) {
	testString(t, `
	local handled = false
	local ok = xpcall(function() error("boom") end, function(m) handled = true return m end)
	assert(not ok)
	assert(handled)
	`)
}

func TestBaseAssert(t *testing.T) {
	testString(t, `
	assert(true)
	local ok = pcall(assert, false, "custom message")
	assert(not ok)
	`)
}
