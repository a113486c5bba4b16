// Package transcribe wraps the AssemblyAI SDK behind a synchronous
// speech-to-text call used by the call processing pipeline.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Auremas/voxanalyze-mvp/internal/domain/entities"
	"github.com/Auremas/voxanalyze-mvp/pkg/config"
)

// Client submits audio to AssemblyAI and polls the transcript until it
// reaches a terminal status.
type Client struct {
	sdk          *aai.Client
	languageCode string
	pollInterval time.Duration
	timeout      time.Duration
	logger       *zap.Logger
}

func NewClient(cfg *config.TranscribeConfig, logger *zap.Logger) *Client {
	pollInterval := 5 * time.Second
	timeout := 15 * time.Minute
	language := "lt"
	if cfg != nil {
		if cfg.PollInterval > 0 {
			pollInterval = cfg.PollInterval
		}
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
		if cfg.LanguageCode != "" {
			language = cfg.LanguageCode
		}
	}

	var apiKey string
	if cfg != nil {
		apiKey = cfg.APIKey
	}

	return &Client{
		sdk:          aai.NewClient(apiKey),
		languageCode: language,
		pollInterval: pollInterval,
		timeout:      timeout,
		logger:       logger,
	}
}

// Transcribe uploads the audio stream, submits a transcription job with
// speaker labels enabled, and polls until completion. The overall call
// is bounded by the configured timeout on top of the caller's context.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader) (*entities.Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	transcriptID, err := c.submit(ctx, audio)
	if err != nil {
		return nil, err
	}

	return c.poll(ctx, transcriptID)
}

// submit uploads the audio and creates the transcription job, retrying
// transient failures with exponential backoff. The audio is buffered so
// every retry uploads the complete stream.
func (c *Client) submit(ctx context.Context, audio io.Reader) (string, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return "", fmt.Errorf("failed to read audio stream: %w", err)
	}

	var transcriptID string

	submitFn := func() error {
		uploadURL, err := c.sdk.Upload(ctx, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to upload audio: %w", err)
		}

		if c.logger != nil {
			c.logger.Info("📤 Audio uploaded for transcription",
				zap.String("language", c.languageCode),
			)
		}

		params := &aai.TranscriptOptionalParams{
			LanguageCode:  aai.TranscriptLanguageCode(c.languageCode),
			SpeakerLabels: aai.Bool(true),
		}

		transcript, err := c.sdk.Transcripts.TranscribeFromURL(ctx, uploadURL, params)
		if err != nil {
			return fmt.Errorf("failed to submit transcription: %w", err)
		}
		if transcript.ID == nil {
			return backoff.Permanent(fmt.Errorf("transcription submitted without an id"))
		}
		transcriptID = *transcript.ID
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(submitFn, backoff.WithContext(bo, ctx)); err != nil {
		return "", err
	}

	return transcriptID, nil
}

func (c *Client) poll(ctx context.Context, transcriptID string) (*entities.Transcript, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transcription %s did not finish: %w", transcriptID, ctx.Err())
		case <-ticker.C:
		}

		transcript, err := c.sdk.Transcripts.Get(ctx, transcriptID)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("⚠️ Transcript poll failed",
					zap.String("transcript_id", transcriptID),
					zap.Error(err),
				)
			}
			continue
		}

		switch transcript.Status {
		case aai.TranscriptStatusCompleted:
			return mapTranscript(transcript, c.languageCode), nil
		case aai.TranscriptStatusError:
			msg := "transcription failed"
			if transcript.Error != nil {
				msg = *transcript.Error
			}
			return nil, fmt.Errorf("transcription %s: %s", transcriptID, msg)
		case aai.TranscriptStatusQueued, aai.TranscriptStatusProcessing:
			continue
		default:
			if c.logger != nil {
				c.logger.Warn("⚠️ Unknown transcript status",
					zap.String("transcript_id", transcriptID),
					zap.String("status", string(transcript.Status)),
				)
			}
		}
	}
}

// mapTranscript converts the SDK transcript into the domain shape,
// turning speaker utterances into segments with timestamps in seconds.
func mapTranscript(t aai.Transcript, language string) *entities.Transcript {
	var text string
	if t.Text != nil {
		text = *t.Text
	}

	segments := make([]entities.Segment, 0, len(t.Utterances))
	for _, utt := range t.Utterances {
		segment := entities.Segment{}
		if utt.Text != nil {
			segment.Text = *utt.Text
		}
		if utt.Speaker != nil {
			segment.Speaker = *utt.Speaker
		}
		if utt.Start != nil {
			segment.StartTime = float64(*utt.Start) / 1000.0
		}
		if utt.End != nil {
			segment.EndTime = float64(*utt.End) / 1000.0
		}
		segments = append(segments, segment)
	}

	result := entities.NewTranscript(text, language, segments)
	result.Normalize()
	return result
}
