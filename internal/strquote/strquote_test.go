package strquote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendPlainString(t *testing.T) {
	got := Append(nil, []byte("hello"))
	assert.Equal(t, `"hello"`, string(got))
}

func TestAppendEscapesControlCharacters(t *testing.T) {
	got := Append(nil, []byte("a\nb\tc"))
	assert.Equal(t, `"a\nb\tc"`, string(got))
}

func TestAppendEscapesQuotesAndBackslash(t *testing.T) {
	got := Append(nil, []byte(`say "hi"\ok`))
	assert.Equal(t, `"say \"hi\"\\ok"`, string(got))
}

func TestAppendEscapesNonASCIIAsHex(t *testing.T) {
	got := Append(nil, []byte{0x00, 0xff})
	assert.Equal(t, `"\x00\xff"`, string(got))
}

func TestAppendPreservesExistingBufferPrefix(t *testing.T) {
	buf := []byte("prefix:")
	got := Append(buf, []byte("x"))
	assert.Equal(t, `prefix:"x"`, string(got))
}
