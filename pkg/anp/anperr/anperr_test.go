package anperr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorRoundTrip(t *testing.T) {
	orig := Quota(QuotaWorkspaceFile, "too many files")
	el := orig.ToElements()

	decoded := FromElements(el)
	assert.Equal(t, orig.Code, decoded.Code)
	assert.Equal(t, orig.Sub, decoded.Sub)
	assert.Equal(t, orig.Message, decoded.Message)
}

func TestErrorRoundTrip_NonQuota(t *testing.T) {
	orig := ConnLost("peer closed")
	el := orig.ToElements()
	require.Empty(t, el.Trailer)

	decoded := FromElements(el)
	assert.Equal(t, EAnpConn, decoded.Code)
	assert.Equal(t, "peer closed", decoded.Message)
}

func TestIs(t *testing.T) {
	err := ConnLost("gone")
	assert.True(t, Is(err, EAnpConn))
	assert.False(t, Is(err, Cancelled))
	assert.False(t, Is(nil, EAnpConn))
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "EAnpConn", EAnpConn.String())
	assert.Contains(t, Code(999).String(), "Code(999)")
}
