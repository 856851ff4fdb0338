package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anochat/internal/chat"
)

type fakeTTS struct {
	calls int
}

func (f *fakeTTS) Synthesize(_ context.Context, _, _, _ string, _ *string) ([]byte, string, error) {
	f.calls++
	return []byte("audio"), "audio/mpeg", nil
}

type fakeFiles struct {
	saved int
}

func (f *fakeFiles) Save(_ []byte, _ string) (string, error) {
	f.saved++
	return "voice.mp3", nil
}

func TestSpeechSynthesizesOnce(t *testing.T) {
	store := newFakeStore()
	tts := &fakeTTS{}
	fs := &fakeFiles{}
	s := newTestServer(store, &fakeQueue{})
	s.tts = tts
	s.files = fs

	content := "read me aloud"
	id, err := store.AddMessage(context.Background(), chat.Message{RoomID: 5, SenderID: 10, Content: &content})
	require.NoError(t, err)

	c, rec := request(s, http.MethodGet, "/api/message/speech?id="+id, "")
	require.NoError(t, s.speech(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/files/voice.mp3")
	assert.Equal(t, 1, tts.calls)
	assert.Equal(t, 1, fs.saved)

	// The second request serves the stored artifact without resynthesizing.
	c, rec = request(s, http.MethodGet, "/api/message/speech?id="+id, "")
	require.NoError(t, s.speech(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/files/voice.mp3")
	assert.Equal(t, 1, tts.calls)
}

func TestSpeechMissingMessage(t *testing.T) {
	s := newTestServer(newFakeStore(), &fakeQueue{})

	c, _ := request(s, http.MethodGet, "/api/message/speech?id=0000000000000000000000000000", "")
	err := s.speech(c)

	assert.Equal(t, http.StatusNotFound, httpStatus(t, err))
}

func TestSpeechDeletedMessage(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(store, &fakeQueue{})

	content := "gone"
	id, err := store.AddMessage(context.Background(), chat.Message{RoomID: 5, SenderID: 10, Content: &content})
	require.NoError(t, err)
	require.NoError(t, store.SoftDeleteMessage(context.Background(), id))

	c, _ := request(s, http.MethodGet, "/api/message/speech?id="+id, "")
	err = s.speech(c)

	assert.Equal(t, http.StatusNotFound, httpStatus(t, err))
}

func TestSpeechDeletedMessageWithArtifact(t *testing.T) {
	store := newFakeStore()
	tts := &fakeTTS{}
	s := newTestServer(store, &fakeQueue{})
	s.tts = tts
	s.files = &fakeFiles{}

	content := "read me aloud"
	id, err := store.AddMessage(context.Background(), chat.Message{RoomID: 5, SenderID: 10, Content: &content})
	require.NoError(t, err)

	// Synthesize once, then delete the message.
	c, rec := request(s, http.MethodGet, "/api/message/speech?id="+id, "")
	require.NoError(t, s.speech(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, store.SoftDeleteMessage(context.Background(), id))

	// The attached artifact must not outlive the message.
	c, _ = request(s, http.MethodGet, "/api/message/speech?id="+id, "")
	err = s.speech(c)

	assert.Equal(t, http.StatusNotFound, httpStatus(t, err))
	assert.Equal(t, 1, tts.calls)
}
