package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profilesYAML = `
assistants:
  - id: orchard-helper
    name: Orchard Helper
    title: Fruit tree advisor
    openingLine: Hello from the orchard!
    echoTemplate: 'Orchard notes: {text}'
  - id: farm-assistant
    name: Farm Assistant
    title: Override title
`

func TestParseFillsDefaults(t *testing.T) {
	profiles, err := Parse([]byte(profilesYAML))
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	orchard := profiles[0]
	assert.Equal(t, "orchard-helper", orchard.ID)
	assert.Equal(t, "Orchard notes: {text}", orchard.EchoTemplate)
	assert.Equal(t, Seed()[0].VoiceTranscript, orchard.VoiceTranscript)
	assert.Equal(t, Seed()[0].VoiceReply, orchard.VoiceReply)
}

func TestParseRejectsDuplicatesAndMissingIDs(t *testing.T) {
	_, err := Parse([]byte("assistants:\n  - id: a\n  - id: a\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("assistants:\n  - name: nameless\n"))
	assert.Error(t, err)
}

func TestLoadFileAndMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(profilesYAML), 0o600))

	loaded, err := LoadFile(path)
	require.NoError(t, err)

	store := NewMemoryStore(Merge(Seed(), loaded))
	require.Len(t, store.List(), 2)

	farm, ok := store.FindByID(DefaultID)
	require.True(t, ok)
	assert.Equal(t, "Override title", farm.Title)

	_, ok = store.FindByID("missing")
	assert.False(t, ok)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
