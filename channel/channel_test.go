package channel_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"i4.energy/across/smsbridge/channel"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestDecodeMethodCall(t *testing.T) {
	call, err := channel.DecodeMethodCall(strings.NewReader(
		`{"method":"sendSms","arguments":{"phone":"+15551234567","message":"hi","simSlot":1}}`))
	require.NoError(t, err)

	assert.Equal(t, "sendSms", call.Method)

	phone, ok := call.StringArgument("phone")
	assert.True(t, ok)
	assert.Equal(t, "+15551234567", phone)

	slot, present, err := call.IntArgument("simSlot")
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, 1, slot)
}

func TestDecodeMethodCallErrors(t *testing.T) {
	_, err := channel.DecodeMethodCall(strings.NewReader(`{"method":`))
	assert.Error(t, err)

	_, err = channel.DecodeMethodCall(strings.NewReader(`{"arguments":{}}`))
	assert.Error(t, err)
}

func TestIntArgument(t *testing.T) {
	call := channel.MethodCall{Arguments: map[string]any{
		"int":      3,
		"number":   json.Number("-1"),
		"float":    2.0,
		"fraction": 2.5,
		"text":     "1",
		"null":     nil,
	}}

	tests := []struct {
		key     string
		want    int
		present bool
		wantErr bool
	}{
		{key: "int", want: 3, present: true},
		{key: "number", want: -1, present: true},
		{key: "float", want: 2, present: true},
		{key: "fraction", present: true, wantErr: true},
		{key: "text", present: true, wantErr: true},
		{key: "null"},
		{key: "absent"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			n, present, err := call.IntArgument(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, channel.ErrNotInteger)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, n)
			}
			assert.Equal(t, tt.present, present)
		})
	}
}

func TestInvoke(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		ch := channel.NewMethodChannel("test", channel.HandlerFunc(func(_ context.Context, call channel.MethodCall, result channel.Result) {
			result.Success("done: " + call.Method)
		}), discard)

		env := ch.Invoke(ctx, channel.MethodCall{Method: "ping"})
		assert.Equal(t, channel.Envelope{Status: channel.StatusSuccess, Result: "done: ping"}, env)
	})

	t.Run("First reply wins", func(t *testing.T) {
		ch := channel.NewMethodChannel("test", channel.HandlerFunc(func(_ context.Context, _ channel.MethodCall, result channel.Result) {
			result.Error("FIRST", "first", nil)
			result.Success("second")
			result.NotImplemented()
		}), discard)

		env := ch.Invoke(ctx, channel.MethodCall{Method: "ping"})
		assert.Equal(t, channel.StatusError, env.Status)
		assert.Equal(t, "FIRST", env.Code)
	})

	t.Run("No reply", func(t *testing.T) {
		ch := channel.NewMethodChannel("test", channel.HandlerFunc(func(context.Context, channel.MethodCall, channel.Result) {}), discard)

		env := ch.Invoke(ctx, channel.MethodCall{Method: "ping"})
		assert.Equal(t, channel.StatusError, env.Status)
		assert.Equal(t, channel.CodeInternal, env.Code)
	})

	t.Run("Panic", func(t *testing.T) {
		ch := channel.NewMethodChannel("test", channel.HandlerFunc(func(context.Context, channel.MethodCall, channel.Result) {
			panic("boom")
		}), discard)

		env := ch.Invoke(ctx, channel.MethodCall{Method: "ping"})
		assert.Equal(t, channel.CodeInternal, env.Code)
		assert.Equal(t, "boom", env.Message)
	})
}

func TestEnvelopeJSON(t *testing.T) {
	b, err := json.Marshal(channel.Envelope{Status: channel.StatusNotImplemented})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"notImplemented"}`, string(b))

	b, err = json.Marshal(channel.ErrorEnvelope("SEND_FAILED", "radio off"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","code":"SEND_FAILED","message":"radio off"}`, string(b))
}
