package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/krishisahay/krishisahay-go/internal/errors"
)

const (
	testSpeechEndpoint = "http://speech.test/"
	testTTSEndpoint    = "http://tts.test/"
	recognizeURL       = "http://speech.test/v1/speech:recognize"
	synthesizeURL      = "http://tts.test/v1/text:synthesize"
)

// makeWAV encodes samples as a 16-bit WAV file.
func makeWAV(t *testing.T, sampleRate, channels int, samples []int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

// tone returns n samples of a 440Hz sine at half scale.
func tone(n, sampleRate int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = int(16000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	return out
}

type fakeTranscoder struct {
	out   []byte
	err   error
	calls int
}

func (f *fakeTranscoder) Transcode(_ context.Context, _ []byte) ([]byte, error) {
	f.calls++
	return f.out, f.err
}

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	b, err := NewBridge(t.Context(), Config{
		SampleRate:       16000,
		DefaultLanguage:  "en",
		SilenceThreshold: 0.01,
		Timeout:          5 * time.Second,
		SpeechEndpoint:   testSpeechEndpoint,
		TTSEndpoint:      testTTSEndpoint,
	}, nil, option.WithHTTPClient(client))
	require.NoError(t, err)
	return b
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		code    string
		want    string
		wantErr bool
	}{
		{"en", "en-US", false},
		{"hi", "hi-IN", false},
		{"en-GB", "en-GB", false},
		{"mr-IN", "mr-IN", false},
		{"not a language", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := NormalizeLanguage(tt.code)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBridgeNormalizeLanguage_EmptyUsesDefault(t *testing.T) {
	b := &Bridge{cfg: Config{DefaultLanguage: "hi"}}
	got, err := b.NormalizeLanguage("")
	require.NoError(t, err)
	assert.Equal(t, "hi-IN", got)
}

func TestIsCanonical(t *testing.T) {
	assert.True(t, isCanonical(makeWAV(t, 16000, 1, tone(1600, 16000)), 16000))
	assert.False(t, isCanonical(makeWAV(t, 44100, 1, tone(4410, 44100)), 16000))
	assert.False(t, isCanonical(makeWAV(t, 16000, 2, tone(3200, 16000)), 16000))
	assert.False(t, isCanonical([]byte("not audio at all"), 16000))
}

func TestPeakAmplitude(t *testing.T) {
	peak, err := peakAmplitude(makeWAV(t, 16000, 1, make([]int, 1600)))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, peak, 1e-9)

	peak, err = peakAmplitude(makeWAV(t, 16000, 1, tone(1600, 16000)))
	require.NoError(t, err)
	assert.InDelta(t, 16000.0/32768.0, peak, 0.01)
}

func TestTranscribe_Success(t *testing.T) {
	b := newTestBridge(t)

	var captured map[string]any
	httpmock.RegisterResponder("POST", recognizeURL, func(req *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &captured); err != nil {
			return nil, err
		}
		return httpmock.NewStringResponse(200,
			`{"results":[{"alternatives":[{"transcript":"when to water wheat","confidence":0.92}]}]}`), nil
	})

	text, err := b.Transcribe(t.Context(), makeWAV(t, 16000, 1, tone(1600, 16000)), "en")
	require.NoError(t, err)
	assert.Equal(t, "when to water wheat", text)

	config := captured["config"].(map[string]any)
	assert.Equal(t, "LINEAR16", config["encoding"])
	assert.Equal(t, "en-US", config["languageCode"])
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestTranscribe_NonCanonicalAudioIsTranscoded(t *testing.T) {
	b := newTestBridge(t)
	fake := &fakeTranscoder{out: makeWAV(t, 16000, 1, tone(1600, 16000))}
	b.transcoder = fake

	httpmock.RegisterResponder("POST", recognizeURL,
		httpmock.NewStringResponder(200, `{"results":[{"alternatives":[{"transcript":"hello"}]}]}`))

	text, err := b.Transcribe(t.Context(), []byte("m4a container bytes"), "")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, 1, fake.calls)
}

func TestTranscribe_TranscodeFailure(t *testing.T) {
	b := newTestBridge(t)
	b.transcoder = &fakeTranscoder{err: fmt.Errorf("ffmpeg failed: invalid data")}

	_, err := b.Transcribe(t.Context(), []byte("garbage"), "en")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryAudio))
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestTranscribe_SilenceIsUnintelligible(t *testing.T) {
	b := newTestBridge(t)

	_, err := b.Transcribe(t.Context(), makeWAV(t, 16000, 1, make([]int, 1600)), "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAudioUnintelligible)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestTranscribe_NoHypothesisIsUnintelligible(t *testing.T) {
	b := newTestBridge(t)
	httpmock.RegisterResponder("POST", recognizeURL, httpmock.NewStringResponder(200, `{}`))

	_, err := b.Transcribe(t.Context(), makeWAV(t, 16000, 1, tone(1600, 16000)), "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAudioUnintelligible)
	assert.True(t, errors.IsCategory(err, errors.CategoryTranscription))
}

func TestTranscribe_RecognizerUnreachable(t *testing.T) {
	b := newTestBridge(t)
	httpmock.RegisterResponder("POST", recognizeURL,
		httpmock.NewErrorResponder(fmt.Errorf("dial tcp: connection refused")))

	_, err := b.Transcribe(t.Context(), makeWAV(t, 16000, 1, tone(1600, 16000)), "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecognizerUnavailable)
	assert.NotErrorIs(t, err, ErrAudioUnintelligible)
}

func TestTranscribe_Validation(t *testing.T) {
	b := newTestBridge(t)

	_, err := b.Transcribe(t.Context(), nil, "en")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = b.Transcribe(t.Context(), []byte("x"), "???")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestSynthesize(t *testing.T) {
	b := newTestBridge(t)

	var captured map[string]any
	httpmock.RegisterResponder("POST", synthesizeURL, func(req *http.Request) (*http.Response, error) {
		if err := json.NewDecoder(req.Body).Decode(&captured); err != nil {
			return nil, err
		}
		return httpmock.NewStringResponse(200, `{"audioContent":"SUQzBAAAAAAA"}`), nil
	})

	url, err := b.Synthesize(t.Context(), "Water twice a week.", "hi")
	require.NoError(t, err)
	assert.Equal(t, "data:audio/mp3;base64,SUQzBAAAAAAA", url)

	voice := captured["voice"].(map[string]any)
	assert.Equal(t, "hi-IN", voice["languageCode"])
	audioConfig := captured["audioConfig"].(map[string]any)
	assert.Equal(t, "MP3", audioConfig["audioEncoding"])
}

func TestSynthesize_UpstreamError(t *testing.T) {
	b := newTestBridge(t)
	httpmock.RegisterResponder("POST", synthesizeURL,
		httpmock.NewStringResponder(403, `{"error":{"code":403,"message":"API key not valid"}}`))

	_, err := b.Synthesize(t.Context(), "hello", "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSynthesizerUnavailable)
	assert.True(t, errors.IsCategory(err, errors.CategoryUpstream))
}

func TestSynthesize_EmptyText(t *testing.T) {
	b := newTestBridge(t)
	_, err := b.Synthesize(t.Context(), "   ", "en")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestFFmpegTranscode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ffmpeg test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	input := makeWAV(t, 44100, 2, tone(8820, 44100))
	f := &FFmpeg{Path: "ffmpeg", SampleRate: 16000}
	out, err := f.Transcode(t.Context(), input)
	require.NoError(t, err)
	assert.True(t, isCanonical(out, 16000))
}
