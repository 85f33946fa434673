package protection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskValueEmail(t *testing.T) {
	assert.Equal(t, "****@example.com", MaskValue("user@example.com"))
	assert.Equal(t, "*@b.com", MaskValue("a@b.com"))
}

func TestMaskValueDigitRun(t *testing.T) {
	assert.Equal(t, "XXXX-XXXX-XXXX-1111", MaskValue("4111-1111-1111-1111"))
	assert.Equal(t, "XXXXXXXXXXXX1111", MaskValue("4111111111111111"))
	assert.Equal(t, "XXX-XX-6789", MaskValue("123-45-6789"))
	assert.Equal(t, "+XXXXXXX2671", MaskValue("+14155552671"))
}

func TestMaskValueGeneric(t *testing.T) {
	assert.Equal(t, "J******e", MaskValue("Jane Roe"))
	assert.Equal(t, "****", MaskValue("abcd"))
	assert.Equal(t, "", MaskValue(""))
}

func TestMaskValueIsDeterministic(t *testing.T) {
	assert.Equal(t, MaskValue("user@example.com"), MaskValue("user@example.com"))
}
