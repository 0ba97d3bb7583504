package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/dubforge-backend/internal/domain"
	"github.com/yungbote/dubforge-backend/internal/media/pcm"
	"github.com/yungbote/dubforge-backend/internal/media/srt"
	"github.com/yungbote/dubforge-backend/internal/platform/dbctx"
	"github.com/yungbote/dubforge-backend/internal/services"
)

// In-memory doubles for everything a stage touches. Update semantics
// mirror the real repos closely enough to exercise the cancel guards.

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[uuid.UUID]*domain.Job{}}
}

func (r *fakeJobRepo) Create(_ dbctx.Context, j *domain.Job) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	r.jobs[j.ID] = j
	return j, nil
}

func (r *fakeJobRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (r *fakeJobRepo) GetByIDForUser(dbc dbctx.Context, id, userID uuid.UUID) (*domain.Job, error) {
	j, err := r.GetByID(dbc, id)
	if err != nil || j == nil || j.UserID != userID {
		return nil, err
	}
	return j, nil
}

func (r *fakeJobRepo) ListByUser(_ dbctx.Context, userID uuid.UUID, _ []domain.JobStatus, _, _ int) ([]*domain.Job, error) {
	return nil, nil
}

func (r *fakeJobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	_, err := r.UpdateFieldsUnlessStatus(dbc, id, nil, updates)
	return err
}

func (r *fakeJobRepo) UpdateFieldsUnlessStatus(_ dbctx.Context, id uuid.UUID, disallowed []domain.JobStatus, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return false, nil
	}
	for _, d := range disallowed {
		if j.Status == d {
			return false, nil
		}
	}
	applyJobUpdates(j, updates)
	return true, nil
}

func (r *fakeJobRepo) Delete(_ dbctx.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
	return nil
}

func applyJobUpdates(j *domain.Job, updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "status":
			j.Status = v.(domain.JobStatus)
		case "error_details":
			j.ErrorDetails = v.(string)
		case "result_srt_key":
			j.ResultSRTKey = v.(string)
		case "audio_duration_seconds":
			d := v.(float64)
			j.AudioDurationSeconds = &d
		case "meta":
			j.Meta = datatypes.JSON(v.([]byte))
		case "processing_started_at":
			t := v.(time.Time)
			j.ProcessingStartedAt = &t
		case "processing_ended_at":
			if t, ok := v.(time.Time); ok {
				j.ProcessingEndedAt = &t
			} else {
				j.ProcessingEndedAt = nil
			}
		}
	}
}

type fakeNarrationRepo struct {
	mu sync.Mutex
	ns map[uuid.UUID]*domain.Narration
}

func newFakeNarrationRepo() *fakeNarrationRepo {
	return &fakeNarrationRepo{ns: map[uuid.UUID]*domain.Narration{}}
}

func (r *fakeNarrationRepo) Create(_ dbctx.Context, n *domain.Narration) (*domain.Narration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	r.ns[n.ID] = n
	return n, nil
}

func (r *fakeNarrationRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*domain.Narration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.ns[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (r *fakeNarrationRepo) GetByIDForUser(dbc dbctx.Context, id, userID uuid.UUID) (*domain.Narration, error) {
	n, err := r.GetByID(dbc, id)
	if err != nil || n == nil || n.UserID != userID {
		return nil, err
	}
	return n, nil
}

func (r *fakeNarrationRepo) GetByJobID(_ dbctx.Context, jobID uuid.UUID) (*domain.Narration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.ns {
		if n.JobID != nil && *n.JobID == jobID {
			cp := *n
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeNarrationRepo) ListByUser(_ dbctx.Context, _ uuid.UUID, _, _ int) ([]*domain.Narration, error) {
	return nil, nil
}

func (r *fakeNarrationRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	_, err := r.UpdateFieldsUnlessStatus(dbc, id, nil, updates)
	return err
}

func (r *fakeNarrationRepo) UpdateFieldsUnlessStatus(_ dbctx.Context, id uuid.UUID, disallowed []domain.NarrationStatus, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.ns[id]
	if !ok {
		return false, nil
	}
	for _, d := range disallowed {
		if n.Status == d {
			return false, nil
		}
	}
	applyNarrationUpdates(n, updates)
	return true, nil
}

func (r *fakeNarrationRepo) UpdateFieldsUnlessMergeStatus(_ dbctx.Context, id uuid.UUID, disallowed []domain.MergeStatus, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.ns[id]
	if !ok {
		return false, nil
	}
	for _, d := range disallowed {
		if n.MergeStatus == d {
			return false, nil
		}
	}
	applyNarrationUpdates(n, updates)
	return true, nil
}

func (r *fakeNarrationRepo) Delete(_ dbctx.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ns, id)
	return nil
}

func applyNarrationUpdates(n *domain.Narration, updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "status":
			n.Status = v.(domain.NarrationStatus)
		case "error_details":
			n.ErrorDetails = v.(string)
		case "result_audio_key":
			n.ResultAudioKey = v.(string)
		case "merge_status":
			n.MergeStatus = v.(domain.MergeStatus)
		case "merge_error_details":
			n.MergeErrorDetails = v.(string)
		case "result_video_key":
			n.ResultVideoKey = v.(string)
		case "processing_started_at":
			t := v.(time.Time)
			n.ProcessingStartedAt = &t
		case "processing_ended_at":
			if t, ok := v.(time.Time); ok {
				n.ProcessingEndedAt = &t
			} else {
				n.ProcessingEndedAt = nil
			}
		}
	}
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (s *fakeStorage) Save(_ context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) Fetch(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *fakeStorage) FetchToFile(ctx context.Context, key, path string) error {
	r, err := s.Fetch(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *fakeStorage) SaveFromFile(ctx context.Context, key, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return s.Save(ctx, key, bytes.NewReader(data))
}

func (s *fakeStorage) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// fakeTools fakes the ffmpeg boundary: extraction emits a canned PCM
// buffer, encoding and merging just move bytes.
type fakeTools struct {
	audio *pcm.Buffer
	// probeMS overrides the reported container duration; zero means the
	// canned audio's length.
	probeMS int64
}

func (t *fakeTools) AssertReady(context.Context) error { return nil }

func (t *fakeTools) WorkDir(prefix string) (string, func(), error) {
	dir, err := os.MkdirTemp("", prefix+"-*")
	if err != nil {
		return "", func() {}, err
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func (t *fakeTools) ExtractAudio(_ context.Context, _, outPath string) error {
	return pcm.WriteWAVFile(outPath, t.audio)
}

func (t *fakeTools) DecodeToWAV(ctx context.Context, in, out string) error {
	return t.ExtractAudio(ctx, in, out)
}

func (t *fakeTools) EncodeMP3(_ context.Context, wavPath, outPath string) error {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}

func (t *fakeTools) Merge(_ context.Context, videoPath, audioPath, outPath string) error {
	v, err := os.ReadFile(videoPath)
	if err != nil {
		return err
	}
	a, err := os.ReadFile(audioPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, append(v, a...), 0o644)
}

func (t *fakeTools) ProbeDurationMS(context.Context, string) (int64, error) {
	if t.probeMS > 0 {
		return t.probeMS, nil
	}
	return t.audio.DurationMS(), nil
}

// fakeTranscriber returns one cue per chunk and can be told to fail for
// chunk files whose name contains a marker.
type fakeTranscriber struct {
	mu       sync.Mutex
	calls    int
	failSubs []string
	failAll  bool
}

func (ft *fakeTranscriber) Transcribe(_ context.Context, audioPath, _ string) ([]srt.Cue, error) {
	ft.mu.Lock()
	ft.calls++
	ft.mu.Unlock()
	if ft.failAll {
		return nil, fmt.Errorf("provider unavailable")
	}
	for _, sub := range ft.failSubs {
		if strings.Contains(audioPath, sub) {
			return nil, fmt.Errorf("provider rejected chunk")
		}
	}
	return []srt.Cue{
		{Index: 1, StartMS: 100, EndMS: 900, Text: "hello from " + audioPath},
	}, nil
}

// fakeTTS emits a flat tone whose duration scales with the text length.
type fakeTTS struct {
	rate     int
	msPerVoc int64
}

func (ft *fakeTTS) Resolve(name string) (services.Voice, error) {
	return services.Voice{Name: name, Engine: "piper"}, nil
}

func (ft *fakeTTS) Synthesize(_ context.Context, _, text string) (*pcm.Buffer, error) {
	ms := int64(len(text)) * ft.msPerVoc
	if ms < 50 {
		ms = 50
	}
	n := int(int64(ft.rate) * ms / 1000)
	b := &pcm.Buffer{SampleRate: ft.rate, Samples: make([]int16, n)}
	for i := range b.Samples {
		b.Samples[i] = int16(9000 * math.Sin(float64(i)/20))
	}
	return b, nil
}

type fakeLease struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLease() *fakeLease { return &fakeLease{held: map[string]bool{}} }

func (fl *fakeLease) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.held[key] {
		return nil, services.ErrLeaseHeld
	}
	fl.held[key] = true
	return func(context.Context) error {
		fl.mu.Lock()
		defer fl.mu.Unlock()
		delete(fl.held, key)
		return nil
	}, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (fn *fakeNotifier) NotifyJob(_ context.Context, url string, jobID uuid.UUID, status, errDetails string) {
	fn.mu.Lock()
	defer fn.mu.Unlock()
	fn.calls = append(fn.calls, status)
}

func (fn *fakeNotifier) statuses() []string {
	fn.mu.Lock()
	defer fn.mu.Unlock()
	out := make([]string, len(fn.calls))
	copy(out, fn.calls)
	return out
}
