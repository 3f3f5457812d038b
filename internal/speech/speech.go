// Package speech transcribes uploaded voice messages and synthesizes spoken
// replies using the Google Speech-to-Text and Text-to-Speech REST APIs.
package speech

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
	"google.golang.org/api/option"
	speechapi "google.golang.org/api/speech/v1"
	"google.golang.org/api/texttospeech/v1"

	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/logger"
	"github.com/krishisahay/krishisahay-go/internal/observability/metrics"
)

// AudioDataURLPrefix prefixes the base64 MP3 returned by Synthesize.
const AudioDataURLPrefix = "data:audio/mp3;base64,"

var (
	// ErrAudioUnintelligible is returned when the recognizer produced no hypothesis.
	ErrAudioUnintelligible = errors.NewStd("could not understand audio")

	// ErrRecognizerUnavailable is returned when the recognizer backend could not be reached.
	ErrRecognizerUnavailable = errors.NewStd("speech recognition service unavailable")

	// ErrSynthesizerUnavailable is returned when speech synthesis failed.
	ErrSynthesizerUnavailable = errors.NewStd("speech synthesis service unavailable")
)

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the speech package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("speech")
	})
	return serviceLogger
}

// UpstreamRecorder receives upstream call metrics.
type UpstreamRecorder interface {
	RecordRequest(service, status string, d time.Duration)
}

// Config holds Bridge settings.
type Config struct {
	FFmpegPath       string
	SampleRate       int
	DefaultLanguage  string
	SilenceThreshold float64
	Timeout          time.Duration
	SpeechEndpoint   string
	TTSEndpoint      string
}

// Bridge converts between voice and text.
type Bridge struct {
	cfg        Config
	transcoder Transcoder
	recognizer *speechapi.Service
	tts        *texttospeech.Service
	recorder   UpstreamRecorder
}

// NewBridge creates the Speech-to-Text and Text-to-Speech clients. opts are
// shared by both clients and normally carry the API key.
func NewBridge(ctx context.Context, cfg Config, recorder UpstreamRecorder, opts ...option.ClientOption) (*Bridge, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}

	speechOpts := opts
	if cfg.SpeechEndpoint != "" {
		speechOpts = append(append([]option.ClientOption(nil), opts...), option.WithEndpoint(cfg.SpeechEndpoint))
	}
	recognizer, err := speechapi.NewService(ctx, speechOpts...)
	if err != nil {
		return nil, errors.New(err).
			Component("speech").
			Category(errors.CategoryConfiguration).
			Context("service", metrics.ServiceSpeech).
			Build()
	}

	ttsOpts := opts
	if cfg.TTSEndpoint != "" {
		ttsOpts = append(append([]option.ClientOption(nil), opts...), option.WithEndpoint(cfg.TTSEndpoint))
	}
	tts, err := texttospeech.NewService(ctx, ttsOpts...)
	if err != nil {
		return nil, errors.New(err).
			Component("speech").
			Category(errors.CategoryConfiguration).
			Context("service", metrics.ServiceTTS).
			Build()
	}

	return &Bridge{
		cfg:        cfg,
		transcoder: &FFmpeg{Path: cfg.FFmpegPath, SampleRate: cfg.SampleRate},
		recognizer: recognizer,
		tts:        tts,
		recorder:   recorder,
	}, nil
}

// NormalizeLanguage parses a BCP-47 code and returns it with a region, as
// the speech APIs expect ("en" becomes "en-US", "hi" becomes "hi-IN").
// An empty code yields the configured default.
func (b *Bridge) NormalizeLanguage(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		code = b.cfg.DefaultLanguage
	}
	return NormalizeLanguage(code)
}

// NormalizeLanguage parses code as a BCP-47 tag and fills in the most likely region.
func NormalizeLanguage(code string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return "", errors.New(fmt.Errorf("invalid language code %q: %w", code, err)).
			Component("speech").
			Category(errors.CategoryValidation).
			Build()
	}
	base, _ := tag.Base()
	region, _ := tag.Region()
	normalized, err := language.Compose(base, region)
	if err != nil {
		return "", errors.New(err).
			Component("speech").
			Category(errors.CategoryValidation).
			Build()
	}
	return normalized.String(), nil
}

// Transcribe converts an uploaded audio blob to text in languageCode.
// Non-canonical audio is transcoded first. Silent audio and an empty
// recognizer result fail with ErrAudioUnintelligible.
func (b *Bridge) Transcribe(ctx context.Context, audio []byte, languageCode string) (string, error) {
	if len(audio) == 0 {
		return "", errors.ValidationError("audio file is empty")
	}
	lang, err := b.NormalizeLanguage(languageCode)
	if err != nil {
		return "", err
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	wavData := audio
	if !isCanonical(audio, b.cfg.SampleRate) {
		start := time.Now()
		wavData, err = b.transcoder.Transcode(ctx, audio)
		if err != nil {
			return "", errors.New(err).
				Component("speech").
				Category(errors.CategoryAudio).
				Context("operation", "transcode").
				Context("input_bytes", len(audio)).
				Timing("transcode", time.Since(start)).
				Build()
		}
		GetLogger().Debug("audio transcoded",
			logger.Int("input_bytes", len(audio)),
			logger.Int("output_bytes", len(wavData)),
			logger.Duration("elapsed", time.Since(start)))
	}

	peak, err := peakAmplitude(wavData)
	if err != nil {
		return "", err
	}
	if peak < b.cfg.SilenceThreshold {
		GetLogger().Debug("audio below silence threshold", logger.Float64("peak", peak))
		return "", unintelligible("silence")
	}

	req := &speechapi.RecognizeRequest{
		Config: &speechapi.RecognitionConfig{
			Encoding:                   "LINEAR16",
			SampleRateHertz:            int64(b.cfg.SampleRate),
			AudioChannelCount:          1,
			LanguageCode:               lang,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechapi.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(wavData),
		},
	}

	start := time.Now()
	resp, err := b.recognizer.Speech.Recognize(req).Context(ctx).Do()
	elapsed := time.Since(start)
	b.record(metrics.ServiceSpeech, err, elapsed)
	if err != nil {
		GetLogger().Warn("speech recognition failed",
			logger.String("language", lang),
			logger.Duration("elapsed", elapsed),
			logger.Error(err))
		return "", errors.New(fmt.Errorf("%w: %w", ErrRecognizerUnavailable, err)).
			Component("speech").
			Category(errors.CategoryTranscription).
			Context("service", metrics.ServiceSpeech).
			Timing("recognize", elapsed).
			Build()
	}

	transcript := bestTranscript(resp)
	if transcript == "" {
		return "", unintelligible("no_hypothesis")
	}

	GetLogger().Debug("speech recognized",
		logger.String("language", lang),
		logger.Int("transcript_len", len(transcript)),
		logger.Duration("elapsed", elapsed))
	return transcript, nil
}

// Synthesize renders text as MP3 speech in languageCode and returns it as a
// base64 data URL. The audio is never written to disk.
func (b *Bridge) Synthesize(ctx context.Context, text, languageCode string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.ValidationError("text to synthesize is empty")
	}
	lang, err := b.NormalizeLanguage(languageCode)
	if err != nil {
		return "", err
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	req := &texttospeech.SynthesizeSpeechRequest{
		Input:       &texttospeech.SynthesisInput{Text: text},
		Voice:       &texttospeech.VoiceSelectionParams{LanguageCode: lang},
		AudioConfig: &texttospeech.AudioConfig{AudioEncoding: "MP3"},
	}

	start := time.Now()
	resp, err := b.tts.Text.Synthesize(req).Context(ctx).Do()
	elapsed := time.Since(start)
	b.record(metrics.ServiceTTS, err, elapsed)
	if err != nil {
		return "", errors.New(fmt.Errorf("%w: %w", ErrSynthesizerUnavailable, err)).
			Component("speech").
			Category(errors.CategoryUpstream).
			Context("service", metrics.ServiceTTS).
			Timing("synthesize", elapsed).
			Build()
	}
	if resp.AudioContent == "" {
		return "", errors.New(ErrSynthesizerUnavailable).
			Component("speech").
			Category(errors.CategoryUpstream).
			Context("service", metrics.ServiceTTS).
			Context("reason", "empty_audio").
			Build()
	}

	return AudioDataURLPrefix + resp.AudioContent, nil
}

// bestTranscript joins the top alternative of every result.
func bestTranscript(resp *speechapi.RecognizeResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, result := range resp.Results {
		if result == nil || len(result.Alternatives) == 0 || result.Alternatives[0] == nil {
			continue
		}
		if t := strings.TrimSpace(result.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func unintelligible(reason string) error {
	return errors.New(ErrAudioUnintelligible).
		Component("speech").
		Category(errors.CategoryTranscription).
		Priority(errors.PriorityLow).
		Context("reason", reason).
		Build()
}

func (b *Bridge) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.cfg.Timeout)
}

func (b *Bridge) record(service string, err error, d time.Duration) {
	if b.recorder == nil {
		return
	}
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	b.recorder.RecordRequest(service, status, d)
}
