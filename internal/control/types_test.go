package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrBusNameTakenMessage(t *testing.T) {
	err := errBusNameTaken("ancs4linux.Observer")
	assert.Contains(t, err.Error(), "ancs4linux.Observer")
}
