package lua

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFileSyntaxError(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "syntax_error.lua")
	require.NoError(t, os.WriteFile(fileName, []byte("local x = 1\nlocal y = 2\nlocal z =\n"), 0644))
	l := NewState()
	err := LoadFile(l, fileName, "")
	require.Equal(t, SyntaxError, err, "didn't return SyntaxError on file with syntax error")
	require.Equal(t, 1, l.Top(), "didn't push anything to the stack")
	require.True(t, l.IsString(-1), "didn't push a string to the stack")
	estr, _ := l.ToString(-1)
	require.True(t, strings.HasPrefix(estr, chunkID("@"+fileName)+":"), "wrong chunk name in error: %s", estr)
	require.Contains(t, estr, "unexpected symbol near <eof>")
}

func TestLoadStringSyntaxError(t *testing.T) {
	l := NewState()
	err := LoadString(l, "this_is_a_syntax_error")
	require.Equal(t, SyntaxError, err, "didn't return SyntaxError on string with syntax error")
	require.Equal(t, 1, l.Top(), "didn't push anything to the stack")
	require.True(t, l.IsString(-1), "didn't push a string to the stack")
	estr, _ := l.ToString(-1)
	require.Equal(t, `[string "this_is_a_syntax_error"]:1: syntax error near <eof>`, estr)
}
