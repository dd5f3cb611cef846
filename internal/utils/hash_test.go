package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString(t *testing.T) {
	hash := HashString("hello world")
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashString("hello world"))
	assert.NotEqual(t, hash, HashString("hello world "))
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "", Fingerprint(""))

	fp := Fingerprint("sk-secret")
	assert.Len(t, fp, 12)
	assert.Equal(t, HashString("sk-secret")[:12], fp)
}

func TestPtrAndDeref(t *testing.T) {
	p := Ptr(int64(42))
	assert.Equal(t, int64(42), *p)
	assert.Equal(t, int64(42), Deref(p))

	var nilStr *string
	assert.Equal(t, "", Deref(nilStr))
}
