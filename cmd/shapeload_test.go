package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadWorkers(t *testing.T) {
	assert.Equal(t, 1, loadWorkers(0))
	assert.Equal(t, 1, loadWorkers(-3))
	assert.Equal(t, 1, loadWorkers(1))
	assert.Equal(t, 4, loadWorkers(4))
}
