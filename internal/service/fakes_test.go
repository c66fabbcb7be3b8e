package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/timmy/adnreport/internal/domain"
	"github.com/timmy/adnreport/internal/source"
)

type fakeTaskStore struct {
	mu       sync.Mutex
	tasks    map[int64]*domain.ReportTask
	statuses map[int64][]domain.TaskStatus
	urls     map[int64]string
	finishes int
	err      error
}

func newFakeTaskStore(tasks ...domain.ReportTask) *fakeTaskStore {
	s := &fakeTaskStore{
		tasks:    make(map[int64]*domain.ReportTask),
		statuses: make(map[int64][]domain.TaskStatus),
		urls:     make(map[int64]string),
	}
	for i := range tasks {
		t := tasks[i]
		s.tasks[t.ID] = &t
	}
	return s
}

func (s *fakeTaskStore) GetByID(_ context.Context, id int64) (*domain.ReportTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTaskStore) Claim(_ context.Context, id int64, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	t, ok := s.tasks[id]
	if !ok {
		return false, nil
	}
	if t.Status == domain.TaskStatusRunning && !t.UpdatedAt.Before(staleBefore) {
		return false, nil
	}
	s.statuses[id] = append(s.statuses[id], domain.TaskStatusRunning)
	t.Status = domain.TaskStatusRunning
	t.Msg = ""
	t.UpdatedAt = time.Now()
	return true, nil
}

func (s *fakeTaskStore) Finish(_ context.Context, id int64, status domain.TaskStatus, msg string, durationMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishes++
	s.statuses[id] = append(s.statuses[id], status)
	if t, ok := s.tasks[id]; ok {
		t.Status = status
		t.Msg = msg
		t.RunCount++
		t.DurationMs = durationMs
	}
	return nil
}

func (s *fakeTaskStore) ListRunnable(_ context.Context, limit, maxRunCount int, staleBefore time.Time) ([]domain.ReportTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.ReportTask
	for _, t := range s.tasks {
		if strings.TrimSpace(t.AdnAppID) == "" {
			continue
		}
		stale := t.Status == domain.TaskStatusRunning && t.UpdatedAt.Before(staleBefore)
		if t.Status != domain.TaskStatusPending && t.Status != domain.TaskStatusFailed && !stale {
			continue
		}
		if maxRunCount > 0 && t.RunCount >= maxRunCount {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeTaskStore) UpdateRequestURL(_ context.Context, id int64, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls[id] = url
	return nil
}

func (s *fakeTaskStore) task(id int64) domain.ReportTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tasks[id]
}

type fakeRawStore struct {
	deleted   []string
	batches   [][]domain.RawReportRow
	groups    []domain.ReportAggregate
	deleteErr error
	insertErr error
	aggErr    error
}

func (s *fakeRawStore) DeletePartition(_ context.Context, day, sdkKey string) (int64, error) {
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	s.deleted = append(s.deleted, day+"/"+sdkKey)
	return 0, nil
}

func (s *fakeRawStore) InsertBatch(_ context.Context, rows []domain.RawReportRow) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.batches = append(s.batches, append([]domain.RawReportRow(nil), rows...))
	return nil
}

func (s *fakeRawStore) Aggregate(_ context.Context, _, _ string) ([]domain.ReportAggregate, error) {
	return s.groups, s.aggErr
}

type fakeInstanceStore struct {
	current    []domain.InstanceBinding
	history    []domain.InstanceBinding
	historyIDs []int64
	err        error
}

func (s *fakeInstanceStore) ListByAdnAppKey(_ context.Context, _ string) ([]domain.InstanceBinding, error) {
	return s.current, s.err
}

func (s *fakeInstanceStore) ListHistoryByInstanceIDs(_ context.Context, ids []int64) ([]domain.InstanceBinding, error) {
	s.historyIDs = ids
	allowed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		allowed[id] = true
	}
	var out []domain.InstanceBinding
	for _, b := range s.history {
		if allowed[b.InstanceID] {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeLinkedStore struct {
	rows  []domain.LinkedReportRow
	calls int
	err   error
}

func (s *fakeLinkedStore) ReplacePartition(_ context.Context, _ string, _ int, _ string, rows []domain.LinkedReportRow) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.rows = append([]domain.LinkedReportRow(nil), rows...)
	return nil
}

type fakeSource struct {
	payload  []byte
	err      error
	requests []source.ReportRequest
}

func (s *fakeSource) GetSourceID() string { return "fake" }

func (s *fakeSource) FetchReport(_ context.Context, req source.ReportRequest) ([]byte, error) {
	s.requests = append(s.requests, req)
	return s.payload, s.err
}

type memoryArchive struct {
	objects map[string][]byte
	err     error
}

func (a *memoryArchive) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	if a.err != nil {
		return a.err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if a.objects == nil {
		a.objects = make(map[string][]byte)
	}
	a.objects[key] = data
	return nil
}
