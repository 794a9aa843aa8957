package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMqttServiceExecutorPublishes(t *testing.T) {
	publisher := &fakePublisher{}
	executor := NewMqttServiceExecutor(publisher, "yolink2mqtt")

	err := executor.Call(context.Background(), ServiceCall{
		Service: "yolink.automation",
		Data:    map[string]any{"message": "service called"},
	})
	require.NoError(t, err)

	messages := publisher.published()
	require.Len(t, messages, 1)
	assert.Equal(t, "yolink2mqtt/service/yolink/automation", messages[0].topic)
	assert.False(t, messages[0].retained)

	var call ServiceCall
	require.NoError(t, json.Unmarshal([]byte(messages[0].payload), &call))
	assert.Equal(t, "service called", call.Data["message"])
}

func TestMqttServiceExecutorErrors(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("offline")}
	executor := NewMqttServiceExecutor(publisher, "yolink2mqtt")

	var invalid *ErrInvalidService
	for _, service := range []string{"automation", ".automation", "yolink.", "a.b.c"} {
		assert.ErrorAs(t, executor.Call(context.Background(), ServiceCall{Service: service}), &invalid, service)
	}

	err := executor.Call(context.Background(), ServiceCall{Service: "yolink.automation"})
	assert.ErrorContains(t, err, "offline")
}

func TestServiceRecorderKeepsRecentCalls(t *testing.T) {
	publisher := &fakePublisher{}
	recorder := NewServiceRecorder(nil, 2)

	for _, name := range []string{"yolink.one", "yolink.two", "yolink.three"} {
		require.NoError(t, recorder.Call(context.Background(), ServiceCall{Service: name}))
	}
	calls := recorder.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "yolink.two", calls[0].Service)
	assert.Equal(t, "yolink.three", calls[1].Service)
	assert.Empty(t, publisher.published())

	recorder.SetNext(NewMqttServiceExecutor(publisher, "root"))
	require.NoError(t, recorder.Call(context.Background(), ServiceCall{Service: "yolink.four"}))
	assert.Len(t, publisher.published(), 1)

	assert.Error(t, recorder.Call(context.Background(), ServiceCall{Service: "bad"}))
	assert.Len(t, recorder.Calls(), 2)
}
