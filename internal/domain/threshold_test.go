package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freightwatch/pkg/apperror"
)

func TestThreshold_Validate(t *testing.T) {
	valid := &Threshold{
		Name:                 "standard",
		DelayMinutes:         30,
		NotificationChannels: []Channel{ChannelEmail, ChannelSMS},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name     string
		mutate   func(*Threshold)
		wantCode apperror.ErrorCode
	}{
		{
			name:     "empty name",
			mutate:   func(th *Threshold) { th.Name = "" },
			wantCode: apperror.CodeInvalidArgument,
		},
		{
			name:     "zero delay",
			mutate:   func(th *Threshold) { th.DelayMinutes = 0 },
			wantCode: apperror.CodeInvalidThreshold,
		},
		{
			name:     "negative delay",
			mutate:   func(th *Threshold) { th.DelayMinutes = -5 },
			wantCode: apperror.CodeInvalidThreshold,
		},
		{
			name:     "no channels",
			mutate:   func(th *Threshold) { th.NotificationChannels = nil },
			wantCode: apperror.CodeInvalidChannel,
		},
		{
			name:     "unknown channel",
			mutate:   func(th *Threshold) { th.NotificationChannels = []Channel{"pigeon"} },
			wantCode: apperror.CodeInvalidChannel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := &Threshold{
				Name:                 valid.Name,
				DelayMinutes:         valid.DelayMinutes,
				NotificationChannels: append([]Channel{}, valid.NotificationChannels...),
			}
			tt.mutate(th)
			err := th.Validate()
			require.Error(t, err)
			assert.True(t, apperror.Is(err, tt.wantCode))
		})
	}
}

func TestThreshold_HasChannel(t *testing.T) {
	th := &Threshold{NotificationChannels: []Channel{ChannelEmail}}
	assert.True(t, th.HasChannel(ChannelEmail))
	assert.False(t, th.HasChannel(ChannelSMS))
}

func TestFallbackThreshold(t *testing.T) {
	th := FallbackThreshold(45)
	assert.Equal(t, 45, th.DelayMinutes)
	assert.Equal(t, []Channel{ChannelEmail}, th.NotificationChannels)

	// Некорректный аргумент заменяется компилируемым значением
	th = FallbackThreshold(0)
	assert.Equal(t, FallbackThresholdMinutes, th.DelayMinutes)
}

func TestChannel_Valid(t *testing.T) {
	assert.True(t, ChannelEmail.Valid())
	assert.True(t, ChannelSMS.Valid())
	assert.False(t, Channel("fax").Valid())
}
