package record

import (
	"bytes"
	"context"
	"crypto/rand"
	goerrors "errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	apperrors "github.com/Auremas/voxanalyze-mvp/errors"
	"github.com/Auremas/voxanalyze-mvp/internal/domain/entities"
	"github.com/Auremas/voxanalyze-mvp/internal/usecase/pii"
	"github.com/Auremas/voxanalyze-mvp/pkg/crypto"
)

// --- fakes ---

type fakeCallStore struct {
	mu    sync.Mutex
	calls map[uuid.UUID]*entities.Call
}

func newFakeCallStore() *fakeCallStore {
	return &fakeCallStore{calls: make(map[uuid.UUID]*entities.Call)}
}

func (f *fakeCallStore) get(id uuid.UUID) *entities.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.calls[id]; ok {
		copied := *c
		return &copied
	}
	return nil
}

func (f *fakeCallStore) Create(ctx context.Context, call *entities.Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *call
	f.calls[call.ID] = &copied
	return nil
}

func (f *fakeCallStore) FindByID(ctx context.Context, id uuid.UUID) (*entities.Call, error) {
	return f.get(id), nil
}

func (f *fakeCallStore) FindByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Call
	for _, c := range f.calls {
		if c.UserID == userID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeCallStore) FindAll(ctx context.Context) ([]*entities.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Call
	for _, c := range f.calls {
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeCallStore) SaveTranscription(ctx context.Context, id uuid.UUID, doc datatypes.JSON) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.calls[id]
	if !ok {
		return fmt.Errorf("call %s not found", id)
	}
	c.Transcription = doc
	c.Status = entities.CallStatusAnalyzing
	return nil
}

func (f *fakeCallStore) SaveAnalysis(ctx context.Context, id uuid.UUID, doc datatypes.JSON) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.calls[id]
	if !ok {
		return fmt.Errorf("call %s not found", id)
	}
	c.Analysis = doc
	c.Status = entities.CallStatusCompleted
	return nil
}

func (f *fakeCallStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.calls[id]; ok {
		c.Status = entities.CallStatusFailed
		c.LastError = &errMsg
	}
	return nil
}

func (f *fakeCallStore) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.calls, id)
	return nil
}

func (f *fakeCallStore) Claim(ctx context.Context, id uuid.UUID, from, to entities.CallStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.calls[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (f *fakeCallStore) ClaimStale(ctx context.Context, id uuid.UUID, status entities.CallStatus, staleBefore time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.calls[id]
	if !ok || c.Status != status || !c.UpdatedAt.Before(staleBefore) {
		return false, nil
	}
	c.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeCallStore) FindStuck(ctx context.Context, threshold time.Duration, limit int) ([]*entities.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Call
	cutoff := time.Now().Add(-threshold)
	for _, c := range f.calls {
		if !c.IsTerminal() && c.UpdatedAt.Before(cutoff) {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeCallStore) Touch(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.calls[id]; ok {
		c.UpdatedAt = time.Now()
	}
	return nil
}

type fakeBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) UploadAudio(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[objectName] = data
	return nil
}

func (f *fakeBlobStore) GetAudio(ctx context.Context, objectName string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[objectName]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectName)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlobStore) DeleteAudio(ctx context.Context, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, objectName)
	return nil
}

func (f *fakeBlobStore) PresignedAudioURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blobs[objectName]; !ok {
		return "", fmt.Errorf("object %s not found", objectName)
	}
	return "https://storage.local/" + objectName + "?signed=1", nil
}

func (f *fakeBlobStore) has(objectName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[objectName]
	return ok
}

type fakeDeduper struct {
	mu     sync.Mutex
	claims map[string]string
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{claims: make(map[string]string)}
}

func (f *fakeDeduper) ClaimUpload(ctx context.Context, contentHash, callID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.claims[contentHash]; exists {
		return false, nil
	}
	f.claims[contentHash] = callID
	return true, nil
}

func (f *fakeDeduper) ReleaseUpload(ctx context.Context, contentHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.claims, contentHash)
	return nil
}

type fakeTranscriber struct {
	transcript *entities.Transcript
	err        error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio io.Reader) (*entities.Transcript, error) {
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.transcript
	return &copied, nil
}

type fakeAnalyzer struct {
	analysis *entities.Analysis
	err      error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, t *entities.Transcript) (*entities.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.analysis
	return &copied, nil
}

// --- helpers ---

type testEnv struct {
	svc    *Service
	store  *fakeCallStore
	blobs  *fakeBlobStore
	dedup  *fakeDeduper
	trans  *fakeTranscriber
	anlz   *fakeAnalyzer
	crypto *crypto.Encryptor
}

func newTestEnv(t *testing.T, encrypted bool) *testEnv {
	t.Helper()

	var key []byte
	if encrypted {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			t.Fatal(err)
		}
	}
	enc, err := crypto.New(key)
	if err != nil {
		t.Fatal(err)
	}

	tokens := pii.TokensForLocale("lt")
	store := newFakeCallStore()
	blobs := newFakeBlobStore()
	dedup := newFakeDeduper()
	trans := &fakeTranscriber{transcript: entities.NewTranscript(
		"Laba diena, mano asmens kodas 12345678901.",
		"lt",
		[]entities.Segment{
			{Speaker: "A", Text: "Laba diena, mano asmens kodas 12345678901.", StartTime: 0, EndTime: 4},
		},
	)}
	anlz := &fakeAnalyzer{analysis: &entities.Analysis{
		Summary:         "Klientas pateikė užklausą ir ji buvo išspręsta.",
		PolitenessScore: 85,
		ResolutionScore: 90,
		ComplianceScore: 75,
		ModelUsed:       "test-model",
		CreatedAt:       time.Now(),
	}}

	svc := NewService(
		store, blobs, dedup, trans,
		pii.NewMasker(nil, nil, time.Second, tokens, zap.NewNop()),
		anlz, enc, pii.NewRedactor(tokens),
		time.Minute, zap.NewNop(),
	)

	return &testEnv{svc: svc, store: store, blobs: blobs, dedup: dedup, trans: trans, anlz: anlz, crypto: enc}
}

func seedCall(env *testEnv, userID uuid.UUID, audio []byte) *entities.Call {
	call := entities.NewCall(userID, "call.mp3", "mp3", int64(len(audio)))
	call.AudioID = "calls/" + call.ID.String() + ".mp3"
	call.Status = entities.CallStatusTranscribing
	env.store.Create(context.Background(), call)
	env.blobs.UploadAudio(context.Background(), call.AudioID, bytes.NewReader(audio), int64(len(audio)), "audio/mpeg")
	return call
}

func appErrorCode(t *testing.T, err error) apperrors.ErrorCode {
	t.Helper()
	var appErr apperrors.AppError
	if !goerrors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	return appErr.Code
}

// --- tests ---

func TestUploadRejectsDuplicateContent(t *testing.T) {
	env := newTestEnv(t, false)
	principal := entities.Principal{UserID: uuid.New(), Role: entities.RoleAgent}
	audio := []byte("audio-bytes")

	first, err := env.svc.Upload(context.Background(), principal, "call.mp3", "audio/mpeg", bytes.NewReader(audio))
	if err != nil {
		t.Fatalf("first upload failed: %v", err)
	}
	if first.Status != entities.CallStatusTranscribing {
		t.Errorf("first upload status = %s, want transcribing", first.Status)
	}

	_, err = env.svc.Upload(context.Background(), principal, "copy.mp3", "audio/mpeg", bytes.NewReader(audio))
	if err == nil {
		t.Fatal("expected duplicate upload to be rejected")
	}
	if code := appErrorCode(t, err); code != apperrors.ErrorCode_CALL_DUPLICATE_UPLOAD {
		t.Errorf("error code = %s, want CALL_DUPLICATE_UPLOAD", code)
	}
}

func TestUploadRejectsEmptyAudio(t *testing.T) {
	env := newTestEnv(t, false)
	principal := entities.Principal{UserID: uuid.New(), Role: entities.RoleAgent}

	_, err := env.svc.Upload(context.Background(), principal, "call.mp3", "audio/mpeg", bytes.NewReader(nil))
	if err == nil {
		t.Fatal("expected empty upload to be rejected")
	}
	if code := appErrorCode(t, err); code != apperrors.ErrorCode_INVALID_ARGUMENT {
		t.Errorf("error code = %s, want INVALID_ARGUMENT", code)
	}
}

func TestProcessCompletesPipeline(t *testing.T) {
	env := newTestEnv(t, true)
	userID := uuid.New()
	call := seedCall(env, userID, []byte("audio-bytes"))

	env.svc.process(call.ID, call.AudioID)

	stored := env.store.get(call.ID)
	if stored.Status != entities.CallStatusCompleted {
		t.Fatalf("status = %s, want completed (last_error: %v)", stored.Status, stored.LastError)
	}
	if !stored.HasTranscription() || !stored.HasAnalysis() {
		t.Fatal("expected transcription and analysis to be persisted")
	}

	// With a key configured both documents are stored as envelopes.
	if !crypto.IsEnvelope(stored.Transcription) {
		t.Error("transcription not stored as encrypted envelope")
	}
	if !crypto.IsEnvelope(stored.Analysis) {
		t.Error("analysis not stored as encrypted envelope")
	}
}

func TestProcessNeverStoresRawPII(t *testing.T) {
	// Plaintext shape makes the stored bytes directly inspectable.
	env := newTestEnv(t, false)
	call := seedCall(env, uuid.New(), []byte("audio-bytes"))

	env.svc.process(call.ID, call.AudioID)

	stored := env.store.get(call.ID)
	if stored.Status != entities.CallStatusCompleted {
		t.Fatalf("status = %s, want completed", stored.Status)
	}
	if strings.Contains(string(stored.Transcription), "12345678901") {
		t.Error("raw person code leaked into stored transcription")
	}
	if !strings.Contains(string(stored.Transcription), "[PERSON_CODE]") {
		t.Error("expected placeholder token in stored transcription")
	}
}

func TestProcessTranscriptionFailureRedactsError(t *testing.T) {
	env := newTestEnv(t, false)
	env.trans.err = fmt.Errorf("provider rejected audio for jonas@example.com")
	call := seedCall(env, uuid.New(), []byte("audio-bytes"))

	env.svc.process(call.ID, call.AudioID)

	stored := env.store.get(call.ID)
	if stored.Status != entities.CallStatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
	if stored.LastError == nil {
		t.Fatal("expected last_error to be set")
	}
	if strings.Contains(*stored.LastError, "jonas@example.com") {
		t.Errorf("email leaked into persisted error: %q", *stored.LastError)
	}
	if !strings.Contains(*stored.LastError, "[EMAIL]") {
		t.Errorf("expected redacted email placeholder in %q", *stored.LastError)
	}
}

func TestProcessAnalysisFailureKeepsTranscription(t *testing.T) {
	env := newTestEnv(t, true)
	env.anlz.err = fmt.Errorf("model unavailable")
	call := seedCall(env, uuid.New(), []byte("audio-bytes"))

	env.svc.process(call.ID, call.AudioID)

	stored := env.store.get(call.ID)
	if stored.Status != entities.CallStatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
	if !stored.HasTranscription() {
		t.Error("transcription lost when analysis failed")
	}
	if stored.HasAnalysis() {
		t.Error("unexpected analysis document after failure")
	}
}

func TestGetCallAuthorization(t *testing.T) {
	env := newTestEnv(t, true)
	owner := uuid.New()
	call := seedCall(env, owner, []byte("audio-bytes"))
	env.svc.process(call.ID, call.AudioID)

	cases := []struct {
		name      string
		principal entities.Principal
		wantCode  apperrors.ErrorCode
	}{
		{"owner reads own call", entities.Principal{UserID: owner, Role: entities.RoleAgent}, apperrors.ErrorCode_UNKNOWN},
		{"admin reads any call", entities.Principal{UserID: uuid.New(), Role: entities.RoleAdmin}, apperrors.ErrorCode_UNKNOWN},
		{"other agent is refused", entities.Principal{UserID: uuid.New(), Role: entities.RoleAgent}, apperrors.ErrorCode_FORBIDDEN},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := env.svc.GetCall(context.Background(), tc.principal, call.ID)
			if tc.wantCode == apperrors.ErrorCode_UNKNOWN {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				// Payloads come back decrypted for authorized readers.
				if crypto.IsEnvelope(got.Transcription) {
					t.Error("transcription returned still encrypted")
				}
				if strings.Contains(string(got.Transcription), "12345678901") {
					t.Error("raw person code in returned transcription")
				}
				return
			}
			if err == nil {
				t.Fatal("expected access to be refused")
			}
			if code := appErrorCode(t, err); code != tc.wantCode {
				t.Errorf("error code = %s, want %s", code, tc.wantCode)
			}
		})
	}
}

func TestGetCallNotFound(t *testing.T) {
	env := newTestEnv(t, false)
	principal := entities.Principal{UserID: uuid.New(), Role: entities.RoleAdmin}

	_, err := env.svc.GetCall(context.Background(), principal, uuid.New())
	if err == nil {
		t.Fatal("expected not found error")
	}
	if code := appErrorCode(t, err); code != apperrors.ErrorCode_CALL_NOT_FOUND {
		t.Errorf("error code = %s, want CALL_NOT_FOUND", code)
	}
}

func TestGetTranscriptDecryptsMaskedTranscript(t *testing.T) {
	env := newTestEnv(t, true)
	owner := uuid.New()
	call := seedCall(env, owner, []byte("audio-bytes"))
	env.svc.process(call.ID, call.AudioID)

	transcript, err := env.svc.GetTranscript(context.Background(), entities.Principal{UserID: owner, Role: entities.RoleAgent}, call.ID)
	if err != nil {
		t.Fatalf("GetTranscript failed: %v", err)
	}
	if strings.Contains(transcript.Text, "12345678901") {
		t.Error("raw person code in returned transcript")
	}
	if !strings.Contains(transcript.Text, "[PERSON_CODE]") {
		t.Errorf("expected placeholder token in transcript %q", transcript.Text)
	}
	if len(transcript.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(transcript.Segments))
	}
}

func TestGetTranscriptBeforeTranscription(t *testing.T) {
	env := newTestEnv(t, false)
	owner := uuid.New()
	call := seedCall(env, owner, []byte("audio-bytes"))

	_, err := env.svc.GetTranscript(context.Background(), entities.Principal{UserID: owner, Role: entities.RoleAgent}, call.ID)
	if err == nil {
		t.Fatal("expected invalid state error")
	}
	if code := appErrorCode(t, err); code != apperrors.ErrorCode_CALL_INVALID_STATE {
		t.Errorf("error code = %s, want CALL_INVALID_STATE", code)
	}
}

func TestGetAudioURLAuthorization(t *testing.T) {
	env := newTestEnv(t, false)
	owner := uuid.New()
	call := seedCall(env, owner, []byte("audio-bytes"))

	url, err := env.svc.GetAudioURL(context.Background(), entities.Principal{UserID: owner, Role: entities.RoleAgent}, call.ID)
	if err != nil {
		t.Fatalf("GetAudioURL failed: %v", err)
	}
	if !strings.Contains(url, call.AudioID) {
		t.Errorf("url %q does not reference the audio object", url)
	}

	_, err = env.svc.GetAudioURL(context.Background(), entities.Principal{UserID: uuid.New(), Role: entities.RoleAgent}, call.ID)
	if err == nil {
		t.Fatal("expected access to be refused")
	}
	if code := appErrorCode(t, err); code != apperrors.ErrorCode_FORBIDDEN {
		t.Errorf("error code = %s, want FORBIDDEN", code)
	}

	_, err = env.svc.GetAudioURL(context.Background(), entities.Principal{UserID: owner, Role: entities.RoleAgent}, uuid.New())
	if err == nil {
		t.Fatal("expected not found error")
	}
	if code := appErrorCode(t, err); code != apperrors.ErrorCode_CALL_NOT_FOUND {
		t.Errorf("error code = %s, want CALL_NOT_FOUND", code)
	}
}

func TestListScopedByRole(t *testing.T) {
	env := newTestEnv(t, false)
	owner := uuid.New()
	other := uuid.New()
	seedCall(env, owner, []byte("audio-one"))
	seedCall(env, other, []byte("audio-two"))

	own, err := env.svc.List(context.Background(), entities.Principal{UserID: owner, Role: entities.RoleAgent})
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 1 {
		t.Errorf("agent sees %d calls, want 1", len(own))
	}

	all, err := env.svc.List(context.Background(), entities.Principal{UserID: uuid.New(), Role: entities.RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("admin sees %d calls, want 2", len(all))
	}
	for _, c := range all {
		if c.Transcription != nil || c.Analysis != nil {
			t.Error("listing leaked payload documents")
		}
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	env := newTestEnv(t, false)
	owner := uuid.New()
	call := seedCall(env, owner, []byte("audio-bytes"))
	principal := entities.Principal{UserID: owner, Role: entities.RoleAgent}

	if err := env.svc.Delete(context.Background(), principal, call.ID); err != nil {
		t.Fatalf("first delete failed: %v", err)
	}
	if env.blobs.has(call.AudioID) {
		t.Error("audio blob not removed")
	}
	if env.store.get(call.ID) != nil {
		t.Error("call row not removed")
	}

	if err := env.svc.Delete(context.Background(), principal, call.ID); err != nil {
		t.Errorf("second delete should succeed, got %v", err)
	}
}

func TestDeleteRefusedForOtherAgent(t *testing.T) {
	env := newTestEnv(t, false)
	call := seedCall(env, uuid.New(), []byte("audio-bytes"))

	err := env.svc.Delete(context.Background(), entities.Principal{UserID: uuid.New(), Role: entities.RoleAgent}, call.ID)
	if err == nil {
		t.Fatal("expected delete to be refused")
	}
	if code := appErrorCode(t, err); code != apperrors.ErrorCode_FORBIDDEN {
		t.Errorf("error code = %s, want FORBIDDEN", code)
	}
}

func TestResumeAnalysisFromStoredTranscript(t *testing.T) {
	env := newTestEnv(t, true)
	call := seedCall(env, uuid.New(), []byte("audio-bytes"))
	env.svc.process(call.ID, call.AudioID)

	// Rewind to analyzing as if the analysis stage had crashed.
	env.store.mu.Lock()
	env.store.calls[call.ID].Status = entities.CallStatusAnalyzing
	env.store.calls[call.ID].Analysis = nil
	env.store.mu.Unlock()

	env.svc.resumeAnalysis(call.ID)

	stored := env.store.get(call.ID)
	if stored.Status != entities.CallStatusCompleted {
		t.Fatalf("status = %s, want completed (last_error: %v)", stored.Status, stored.LastError)
	}
	if !stored.HasAnalysis() {
		t.Error("analysis not persisted after resume")
	}
}
