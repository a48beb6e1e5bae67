package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageLogValidate(t *testing.T) {
	valid := MessageLog{LogID: "log-1", UserID: "234", Direction: DirectionInbound, Text: "hi"}
	assert.NoError(t, valid.Validate())

	outbound := valid
	outbound.Direction = DirectionOutbound
	assert.NoError(t, outbound.Validate())

	noID := valid
	noID.LogID = ""
	assert.Error(t, noID.Validate())

	noUser := valid
	noUser.UserID = ""
	assert.Error(t, noUser.Validate())

	badDirection := valid
	badDirection.Direction = "sideways"
	assert.Error(t, badDirection.Validate())
}
