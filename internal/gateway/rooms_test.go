package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectRoomIsSymmetric(t *testing.T) {
	namer := NewRoomNamer()

	pairs := [][2]string{
		{"alice", "bob"},
		{"bob", "alice"},
		{"1", "2"},
		{"zed", "zed"},
	}
	for _, p := range pairs {
		assert.Equal(t, namer.DirectRoom(p[0], p[1]), namer.DirectRoom(p[1], p[0]))
	}
}

func TestDirectRoomFormat(t *testing.T) {
	namer := NewRoomNamer()

	assert.Equal(t, "chat:alice-bob", namer.DirectRoom("bob", "alice"))
	assert.Equal(t, "chat:alice-bob", namer.DirectRoom("alice", "bob"))
}

func TestPostRoomFormat(t *testing.T) {
	namer := NewRoomNamer()
	assert.Equal(t, "post:42", namer.PostRoom("42"))
}
