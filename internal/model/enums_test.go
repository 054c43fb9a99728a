package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeESignEvent(t *testing.T) {
	tests := []struct {
		raw   string
		event ESignEvent
		ok    bool
	}{
		{"sent", ESignEventSent, true},
		{"document.sent", ESignEventSent, true},
		{"pending", ESignEventPending, true},
		{"awaiting", ESignEventPending, true},
		{"document.viewed", ESignEventPending, true},
		{"signed", ESignEventSigned, true},
		{"document.signed", ESignEventSigned, true},
		{"completed", ESignEventSigned, true},
		{"failed", ESignEventFailed, true},
		{"document.failed", ESignEventFailed, true},
		{"declined", ESignEventFailed, true},
		{"document.declined", ESignEventFailed, true},
		{"expired", ESignEventFailed, true},
		{"SIGNED", ESignEventSigned, true},
		{"  signed  ", ESignEventSigned, true},
		{"document.resent", ESignEventUnknown, false},
		{"cancelled", ESignEventUnknown, false},
		{"", ESignEventUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			event, ok := NormalizeESignEvent(tt.raw)
			assert.Equal(t, tt.event, event)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestESignStatusInFlight(t *testing.T) {
	assert.True(t, ESignSent.InFlight())
	assert.True(t, ESignPending.InFlight())
	assert.False(t, ESignNotSent.InFlight())
	assert.False(t, ESignSigned.InFlight())
	assert.False(t, ESignFailed.InFlight())
}

func TestTokenKindSingleUse(t *testing.T) {
	assert.True(t, TokenKindDealDetails.SingleUse())
	assert.False(t, TokenKindContractReady.SingleUse())
	assert.False(t, TokenKindBrandReply.SingleUse())
}
