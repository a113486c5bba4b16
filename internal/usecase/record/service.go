// Package record orchestrates the call-recording pipeline: upload and
// dedup, transcription, PII masking, encrypted persistence, quality
// analysis, and owner-or-admin access to the results.
package record

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	apperrors "github.com/Auremas/voxanalyze-mvp/errors"
	"github.com/Auremas/voxanalyze-mvp/internal/domain/entities"
	"github.com/Auremas/voxanalyze-mvp/internal/usecase/pii"
	"github.com/Auremas/voxanalyze-mvp/pkg/crypto"
	"github.com/Auremas/voxanalyze-mvp/pkg/jobcontext"
)

// CallStore is the persistence surface the pipeline needs
type CallStore interface {
	Create(ctx context.Context, call *entities.Call) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Call, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Call, error)
	FindAll(ctx context.Context) ([]*entities.Call, error)
	SaveTranscription(ctx context.Context, id uuid.UUID, doc datatypes.JSON) error
	SaveAnalysis(ctx context.Context, id uuid.UUID, doc datatypes.JSON) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	Delete(ctx context.Context, id uuid.UUID) error
	Claim(ctx context.Context, id uuid.UUID, from, to entities.CallStatus) (bool, error)
	ClaimStale(ctx context.Context, id uuid.UUID, status entities.CallStatus, staleBefore time.Time) (bool, error)
	FindStuck(ctx context.Context, threshold time.Duration, limit int) ([]*entities.Call, error)
	Touch(ctx context.Context, id uuid.UUID) error
}

// BlobStore stores the raw audio blobs
type BlobStore interface {
	UploadAudio(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	GetAudio(ctx context.Context, objectName string) (io.ReadCloser, error)
	DeleteAudio(ctx context.Context, objectName string) error
	PresignedAudioURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// Deduper guards against duplicate uploads of identical content
type Deduper interface {
	ClaimUpload(ctx context.Context, contentHash string, callID string) (bool, error)
	ReleaseUpload(ctx context.Context, contentHash string) error
}

// Transcriber converts audio into a transcript
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader) (*entities.Transcript, error)
}

// TranscriptMasker removes PII from a transcript. It never fails.
type TranscriptMasker interface {
	MaskTranscript(ctx context.Context, t entities.Transcript) entities.Transcript
}

// CallAnalyzer scores a masked transcript
type CallAnalyzer interface {
	Analyze(ctx context.Context, t *entities.Transcript) (*entities.Analysis, error)
}

// Service implements the call-recording pipeline
type Service struct {
	calls       CallStore
	blobs       BlobStore
	dedup       Deduper
	transcriber Transcriber
	masker      TranscriptMasker
	analyzer    CallAnalyzer
	encryptor   *crypto.Encryptor
	redactor    *pii.Redactor

	processTimeout time.Duration
	logger         *zap.Logger
}

// NewService wires the pipeline dependencies
func NewService(
	calls CallStore,
	blobs BlobStore,
	dedup Deduper,
	transcriber Transcriber,
	masker TranscriptMasker,
	analyzer CallAnalyzer,
	encryptor *crypto.Encryptor,
	redactor *pii.Redactor,
	processTimeout time.Duration,
	logger *zap.Logger,
) *Service {
	if processTimeout <= 0 {
		processTimeout = 30 * time.Minute
	}
	return &Service{
		calls:          calls,
		blobs:          blobs,
		dedup:          dedup,
		transcriber:    transcriber,
		masker:         masker,
		analyzer:       analyzer,
		encryptor:      encryptor,
		redactor:       redactor,
		processTimeout: processTimeout,
		logger:         logger,
	}
}

// Upload accepts an audio recording, rejects duplicates of content seen
// within the dedup window, stores the blob, and kicks off asynchronous
// processing. The returned call is in the transcribing state.
func (s *Service) Upload(ctx context.Context, principal entities.Principal, fileName, contentType string, audio io.Reader) (*entities.Call, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, apperrors.ErrInvalidArgument("failed to read audio upload")
	}
	if len(data) == 0 {
		return nil, apperrors.ErrInvalidArgument("audio upload is empty")
	}

	hash := sha256.Sum256(data)
	contentHash := hex.EncodeToString(hash[:])

	call := entities.NewCall(principal.UserID, fileName, fileFormat(fileName), int64(len(data)))
	call.AudioID = fmt.Sprintf("calls/%s%s", call.ID, filepath.Ext(fileName))

	claimed, err := s.dedup.ClaimUpload(ctx, contentHash, call.ID.String())
	if err != nil {
		return nil, apperrors.ErrCacheFailed("claim upload", err)
	}
	if !claimed {
		return nil, apperrors.ErrDuplicateUpload()
	}

	if err := s.calls.Create(ctx, call); err != nil {
		s.releaseClaim(ctx, contentHash)
		return nil, apperrors.ErrDBQueryFailed("create call", err)
	}

	if err := s.blobs.UploadAudio(ctx, call.AudioID, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		s.releaseClaim(ctx, contentHash)
		s.failCall(ctx, call.ID, "audio upload failed", err)
		return nil, apperrors.ErrStorageFailed("upload audio", err)
	}

	won, err := s.calls.Claim(ctx, call.ID, entities.CallStatusPending, entities.CallStatusTranscribing)
	if err != nil {
		return nil, apperrors.ErrDBQueryFailed("claim call", err)
	}
	if won {
		call.Status = entities.CallStatusTranscribing
		go s.process(call.ID, call.AudioID)
	}

	if s.logger != nil {
		s.logger.Info("📥 Call upload accepted",
			zap.String("call_id", call.ID.String()),
			zap.String("user_id", principal.UserID.String()),
			zap.Int64("file_size", call.FileSize),
		)
	}

	return call, nil
}

// process runs transcription, masking and analysis for a stored call.
// It runs detached from the upload request on its own bounded context.
func (s *Service) process(callID uuid.UUID, audioID string) {
	ctx, cancel := jobcontext.JobBegin(context.Background(), callID, jobcontext.StageTranscription, 0, s.processTimeout)
	defer cancel()

	stop := s.heartbeat(ctx, callID)
	defer stop()

	audio, err := s.blobs.GetAudio(ctx, audioID)
	if err != nil {
		s.failCall(ctx, callID, "failed to read stored audio", err)
		return
	}

	transcript, err := s.transcriber.Transcribe(ctx, audio)
	audio.Close()
	if err != nil {
		s.failCall(ctx, callID, "transcription failed", err)
		return
	}

	// Masking cannot fail; in the worst case the regex pass alone ran.
	masked := s.masker.MaskTranscript(ctx, *transcript)

	doc, err := s.encryptDoc(masked)
	if err != nil {
		// Fail closed: a record that cannot be encrypted is never
		// persisted in plaintext instead.
		s.failCall(ctx, callID, "failed to protect transcription", err)
		return
	}

	// The transcript is expensive to reproduce; retry transient store
	// failures before giving up on the call.
	err = jobcontext.Run(ctx, 3, func(ctx context.Context) error {
		return s.calls.SaveTranscription(ctx, callID, doc)
	})
	if err != nil {
		s.failCall(ctx, callID, "failed to store transcription", err)
		return
	}

	if s.logger != nil {
		s.logger.Info("📝 Transcription stored",
			zap.String("call_id", callID.String()),
			zap.Int("segments", len(masked.Segments)),
		)
	}

	s.analyze(ctx, callID, &masked)
}

// analyze runs the quality-analysis stage against an already masked
// transcript. A failure here leaves the stored transcript readable.
func (s *Service) analyze(ctx context.Context, callID uuid.UUID, masked *entities.Transcript) {
	analysis, err := s.analyzer.Analyze(ctx, masked)
	if err != nil {
		s.failCall(ctx, callID, "analysis failed", err)
		return
	}

	// The summary is derived text; redact it even though the input was
	// already masked, since models occasionally echo residual identifiers.
	analysis.Summary = s.redactor.Redact(analysis.Summary)

	doc, err := s.encryptDoc(analysis)
	if err != nil {
		s.failCall(ctx, callID, "failed to protect analysis", err)
		return
	}

	err = jobcontext.Run(ctx, 3, func(ctx context.Context) error {
		return s.calls.SaveAnalysis(ctx, callID, doc)
	})
	if err != nil {
		s.failCall(ctx, callID, "failed to store analysis", err)
		return
	}

	if s.logger != nil {
		s.logger.Info("✅ Call processing completed",
			zap.String("call_id", callID.String()),
			zap.String("model", analysis.ModelUsed),
		)
	}
}

// GetCall returns a call with its payload documents decrypted.
// Authorization is checked before any decryption happens.
func (s *Service) GetCall(ctx context.Context, principal entities.Principal, id uuid.UUID) (*entities.Call, error) {
	call, err := s.calls.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.ErrDBQueryFailed("find call", err)
	}
	if call == nil {
		return nil, apperrors.ErrCallNotFound(id.String())
	}
	if !principal.CanAccess(call) {
		return nil, apperrors.ErrForbidden("read call")
	}

	if call.HasTranscription() {
		plain, err := s.decryptDoc(call.Transcription)
		if err != nil {
			return nil, err
		}
		call.Transcription = plain
	}
	if call.HasAnalysis() {
		plain, err := s.decryptDoc(call.Analysis)
		if err != nil {
			return nil, err
		}
		call.Analysis = plain
	}

	return call, nil
}

// GetTranscript returns the decrypted, masked transcript of a call
func (s *Service) GetTranscript(ctx context.Context, principal entities.Principal, id uuid.UUID) (*entities.Transcript, error) {
	call, err := s.calls.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.ErrDBQueryFailed("find call", err)
	}
	if call == nil {
		return nil, apperrors.ErrCallNotFound(id.String())
	}
	if !principal.CanAccess(call) {
		return nil, apperrors.ErrForbidden("read transcript")
	}
	if !call.HasTranscription() {
		return nil, apperrors.ErrCallInvalidState(id.String(), string(call.Status), "transcribed")
	}

	plain, err := s.decryptDoc(call.Transcription)
	if err != nil {
		return nil, err
	}

	var transcript entities.Transcript
	if err := json.Unmarshal(plain, &transcript); err != nil {
		return nil, apperrors.ErrInternal(fmt.Errorf("malformed transcription document: %w", err))
	}
	return &transcript, nil
}

// audioURLExpiry bounds how long a handed-out audio link stays valid
const audioURLExpiry = 15 * time.Minute

// GetAudioURL returns a short-lived download link for the raw recording.
// The recording is the unmasked source material, so access follows the
// same owner-or-admin rule as the transcript.
func (s *Service) GetAudioURL(ctx context.Context, principal entities.Principal, id uuid.UUID) (string, error) {
	call, err := s.calls.FindByID(ctx, id)
	if err != nil {
		return "", apperrors.ErrDBQueryFailed("find call", err)
	}
	if call == nil {
		return "", apperrors.ErrCallNotFound(id.String())
	}
	if !principal.CanAccess(call) {
		return "", apperrors.ErrForbidden("read audio")
	}

	url, err := s.blobs.PresignedAudioURL(ctx, call.AudioID, audioURLExpiry)
	if err != nil {
		return "", apperrors.ErrStorageFailed("presign audio", err)
	}
	return url, nil
}

// List returns call summaries visible to the principal: everything for
// admins, own uploads for everyone else. Payload documents are not
// included in listings.
func (s *Service) List(ctx context.Context, principal entities.Principal) ([]*entities.Call, error) {
	var (
		calls []*entities.Call
		err   error
	)
	if principal.Role == entities.RoleAdmin {
		calls, err = s.calls.FindAll(ctx)
	} else {
		calls, err = s.calls.FindByUser(ctx, principal.UserID)
	}
	if err != nil {
		return nil, apperrors.ErrDBQueryFailed("list calls", err)
	}

	for _, call := range calls {
		call.Transcription = nil
		call.Analysis = nil
	}
	return calls, nil
}

// Delete removes a call record and its audio blob. Deleting a call that
// does not exist succeeds, so retried deletes are safe.
func (s *Service) Delete(ctx context.Context, principal entities.Principal, id uuid.UUID) error {
	call, err := s.calls.FindByID(ctx, id)
	if err != nil {
		return apperrors.ErrDBQueryFailed("find call", err)
	}
	if call == nil {
		return nil
	}
	if !principal.CanAccess(call) {
		return apperrors.ErrForbidden("delete call")
	}

	// Blob first: a leftover row without a blob is recoverable on retry,
	// an orphaned blob without a row is not.
	if err := s.blobs.DeleteAudio(ctx, call.AudioID); err != nil {
		return apperrors.ErrStorageFailed("delete audio", err)
	}
	if err := s.calls.Delete(ctx, id); err != nil {
		return apperrors.ErrDBQueryFailed("delete call", err)
	}

	if s.logger != nil {
		s.logger.Info("🗑️ Call deleted",
			zap.String("call_id", id.String()),
			zap.String("user_id", principal.UserID.String()),
		)
	}
	return nil
}

// resume restarts processing for a call claimed by the stuck-call
// sweep. Pending calls never got their audio stored, so they fail.
func (s *Service) resume(call *entities.Call) {
	switch call.Status {
	case entities.CallStatusPending:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.failCall(ctx, call.ID, "upload did not complete", nil)
	case entities.CallStatusTranscribing:
		s.process(call.ID, call.AudioID)
	case entities.CallStatusAnalyzing:
		s.resumeAnalysis(call.ID)
	}
}

// resumeAnalysis re-runs the analysis stage from the stored transcript
func (s *Service) resumeAnalysis(callID uuid.UUID) {
	ctx, cancel := jobcontext.JobBegin(context.Background(), callID, jobcontext.StageAnalysis, 0, s.processTimeout)
	defer cancel()

	call, err := s.calls.FindByID(ctx, callID)
	if err != nil || call == nil {
		return
	}
	if !call.HasTranscription() {
		s.failCall(ctx, callID, "analysis resumed without stored transcription", nil)
		return
	}

	plain, err := s.decryptDoc(call.Transcription)
	if err != nil {
		s.failCall(ctx, callID, "failed to read stored transcription", err)
		return
	}

	var transcript entities.Transcript
	if err := json.Unmarshal(plain, &transcript); err != nil {
		s.failCall(ctx, callID, "malformed stored transcription", err)
		return
	}

	s.analyze(ctx, callID, &transcript)
}

// failCall marks the call failed with a redacted error message.
// Failure messages can quote external responses that echo transcript
// content, so they pass the redaction rules before persistence.
func (s *Service) failCall(ctx context.Context, callID uuid.UUID, msg string, cause error) {
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	msg = s.redactor.Redact(msg)

	if s.logger != nil {
		s.logger.Error("❌ Call processing failed",
			zap.String("call_id", callID.String()),
			zap.String("reason", msg),
		)
	}

	if err := s.calls.MarkFailed(ctx, callID, msg); err != nil && s.logger != nil {
		s.logger.Error("❌ Failed to mark call as failed",
			zap.String("call_id", callID.String()),
			zap.Error(err),
		)
	}
}

// heartbeat refreshes updated_at while a long stage runs, so the
// stuck-call sweep does not claim a call that is still being processed.
// Transcription of a long recording can approach the sweep threshold.
func (s *Service) heartbeat(ctx context.Context, callID uuid.UUID) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.calls.Touch(ctx, callID); err != nil && s.logger != nil {
					s.logger.Warn("⚠️ Failed to refresh call heartbeat",
						zap.String("call_id", callID.String()),
						zap.Error(err),
					)
				}
			}
		}
	}()
	return func() { close(done) }
}

func (s *Service) releaseClaim(ctx context.Context, contentHash string) {
	if err := s.dedup.ReleaseUpload(ctx, contentHash); err != nil && s.logger != nil {
		s.logger.Warn("⚠️ Failed to release upload claim", zap.Error(err))
	}
}

// encryptDoc serializes a payload for storage. With a key configured the
// document is sealed into an envelope; without one the plaintext shape
// is stored as is.
func (s *Service) encryptDoc(v interface{}) (datatypes.JSON, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}

	if !s.encryptor.Enabled() {
		return datatypes.JSON(plain), nil
	}

	sealed, err := s.encryptor.Encrypt(string(plain))
	if err != nil {
		return nil, apperrors.ErrCryptoFailed("encrypt", err)
	}

	doc, err := json.Marshal(crypto.Seal(sealed))
	if err != nil {
		return nil, apperrors.ErrInternal(err)
	}
	return datatypes.JSON(doc), nil
}

// decryptDoc restores the plaintext payload from a stored document,
// handling both the envelope and the plaintext shape.
func (s *Service) decryptDoc(raw datatypes.JSON) (datatypes.JSON, error) {
	if !crypto.IsEnvelope(raw) {
		return raw, nil
	}

	var env crypto.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperrors.ErrInvalidEnvelope(err)
	}

	plain, err := s.encryptor.Decrypt(env.Data)
	if err != nil {
		return nil, apperrors.ErrInvalidEnvelope(err)
	}
	return datatypes.JSON(plain), nil
}

func fileFormat(fileName string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	if ext == "" {
		return "mp3"
	}
	return ext
}
