package valkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCache_KeyPrefix(t *testing.T) {
	c := &Cache{prefix: DefaultPrefix}
	assert.Equal(t, "tracker:routes:id:4", c.key("routes:id:4"))
	assert.Equal(t, "tracker:routes:next:4", c.key("routes:next:4"))
}
