package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPtr(t *testing.T) {
	val := 0.7
	p := Ptr(val)
	if p == nil {
		t.Fatalf("Ptr returned nil for %f", val)
	}
	assert.Equal(t, val, *p)

	// the pointer must not alias the argument
	*p = 1.0
	assert.Equal(t, 0.7, val)
}

func TestDeref(t *testing.T) {
	assert.Equal(t, 5, Deref[int](nil, 5))
	assert.Equal(t, 3, Deref(Ptr(3), 5))
	assert.Equal(t, "", Deref[string](nil, ""))
}
