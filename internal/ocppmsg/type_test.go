package ocppmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringifyRoundTrip(t *testing.T) {
	for typ := Authorize; typ < MsgMax; typ++ {
		name := typ.String()
		require.NotEmpty(t, name, "type %d must have a name", typ)
		assert.Equal(t, typ, ParseType(name), "parse(stringify(%d)) must equal %d", typ, typ)
	}
}

func TestParseUnknownResolvesToMsgMax(t *testing.T) {
	assert.Equal(t, MsgMax, ParseType("NotARealAction"))
	assert.Equal(t, MsgMax, ParseType(""))
}

func TestStringOutOfRange(t *testing.T) {
	assert.Equal(t, "", Type(-1).String())
	assert.Equal(t, "", MsgMax.String())
	assert.Equal(t, "", (MsgMax + 1).String())
}

func TestUndroppableAndEvictionProtected(t *testing.T) {
	cases := []struct {
		typ                Type
		transactional      bool
		undroppable        bool
		evictionProtected  bool
	}{
		{BootNotification, false, true, true},
		{StartTransaction, true, true, true},
		{StopTransaction, true, true, true},
		{MeterValues, true, true, false},
		{DataTransfer, false, false, false},
		{Heartbeat, false, false, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.transactional, c.typ.Transactional(), c.typ.String())
		assert.Equal(t, c.undroppable, c.typ.Undroppable(), c.typ.String())
		assert.Equal(t, c.evictionProtected, c.typ.EvictionProtected(), c.typ.String())
	}
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "NONE", None.String())
	assert.Equal(t, "CALL", Call.String())
	assert.Equal(t, "CALLRESULT", CallResult.String())
	assert.Equal(t, "CALLERROR", CallError.String())
	assert.Equal(t, "UNKNOWN", Role(99).String())
}
