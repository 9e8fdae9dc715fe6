package notificationstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotificationKey(t *testing.T) {
	assert.Equal(t, "sensor-1.abc", notificationKey("sensor-1", "abc"))
	assert.Equal(t, "living_room.abc", notificationKey("living room", "abc"))
}
