package notification

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorded struct {
	title       string
	description string
}

func stubDesktop(t *testing.T, err error) *[]recorded {
	t.Helper()
	var calls []recorded
	original := notifyFunc
	notifyFunc = func(title, message string, _ any) error {
		calls = append(calls, recorded{title, message})
		return err
	}
	t.Cleanup(func() { notifyFunc = original })
	return &calls
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		raw     string
		want    Mode
		wantErr bool
	}{
		{raw: "", want: ModeLog},
		{raw: "LOG", want: ModeLog},
		{raw: " desktop ", want: ModeDesktop},
		{raw: "none", want: ModeNone},
		{raw: "pager", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseMode(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogNotifierWritesEntry(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	NewLog(zap.New(core)).Notify("File Attached", "soil.pdf has been uploaded successfully")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "File Attached", entries[0].Message)
	assert.Equal(t, "soil.pdf has been uploaded successfully", entries[0].ContextMap()["description"])
}

func TestDesktopNotifier(t *testing.T) {
	calls := stubDesktop(t, nil)
	NewDesktop(nil).Notify("Voice Recording Started", "Speak now")

	require.Len(t, *calls, 1)
	assert.Equal(t, recorded{"Voice Recording Started", "Speak now"}, (*calls)[0])
}

func TestDesktopNotifierSwallowsErrors(t *testing.T) {
	stubDesktop(t, errors.New("no dbus"))
	core, logs := observer.New(zapcore.WarnLevel)

	NewDesktop(zap.New(core)).Notify("Camera Feature", "unavailable")
	assert.Equal(t, 1, logs.Len())
}

func TestFromModeDesktopFansOut(t *testing.T) {
	calls := stubDesktop(t, nil)
	core, logs := observer.New(zapcore.InfoLevel)

	FromMode(ModeDesktop, zap.New(core)).Notify("Recording Stopped", "Voice capture discarded")
	assert.Len(t, *calls, 1)
	assert.Equal(t, 1, logs.Len())
}

func TestMultiAndFunc(t *testing.T) {
	var got []string
	m := Multi{
		Func(func(title, _ string) { got = append(got, "a:"+title) }),
		nil,
		Nop{},
		Func(func(title, _ string) { got = append(got, "b:"+title) }),
	}
	m.Notify("x", "y")
	assert.Equal(t, []string{"a:x", "b:x"}, got)
}
