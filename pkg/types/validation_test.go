package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidShelfID(t *testing.T) {
	valid := []string{"shelf-A1", "SHELF_01", "a", "1", strings.Repeat("x", 64)}
	for _, id := range valid {
		assert.True(t, IsValidShelfID(id), "expected %q to be valid", id)
	}

	invalid := []string{"", "shelf A1", "shelf:1", "shelf/1", "shelf.1", strings.Repeat("x", 65)}
	for _, id := range invalid {
		assert.False(t, IsValidShelfID(id), "expected %q to be invalid", id)
	}
}

func TestIsValidOperatorID(t *testing.T) {
	assert.True(t, IsValidOperatorID("op-7"))
	assert.True(t, IsValidOperatorID("worker_42"))
	assert.False(t, IsValidOperatorID(""))
	assert.False(t, IsValidOperatorID("op 7"))
	assert.False(t, IsValidOperatorID(strings.Repeat("o", 65)))
}

func TestIsValidOperationType(t *testing.T) {
	assert.True(t, IsValidOperationType(OperationPlace))
	assert.True(t, IsValidOperationType(OperationRemove))
	assert.True(t, IsValidOperationType(OperationMove))
	assert.False(t, IsValidOperationType("destroy"))
	assert.False(t, IsValidOperationType(""))
	assert.False(t, IsValidOperationType("Place"))
}
