package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/learnupon-exporter/internal/models"
)

func ptrTime(t time.Time) *time.Time {
	return &t
}

func ptrString(s string) *string {
	return &s
}

type enrollmentStoreStub struct {
	enrollments []models.Enrollment
	users       map[int64]models.User
	countErr    error
	streamErr   map[string]error
}

func (s *enrollmentStoreStub) Count(ctx context.Context, filter models.EnrollmentFilter) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	n := 0
	for _, e := range s.enrollments {
		if filter.Matches(e) {
			n++
		}
	}
	return n, nil
}

func (s *enrollmentStoreStub) Stream(ctx context.Context, filter models.EnrollmentFilter, fn func(models.Enrollment) error) error {
	for _, e := range s.enrollments {
		if !filter.Matches(e) {
			continue
		}
		if err := s.streamErr[e.CourseID]; err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *enrollmentStoreStub) ListUsers(ctx context.Context, courseIDs []string) ([]models.User, error) {
	filter := models.EnrollmentFilter{CourseIDs: courseIDs}
	seen := map[int64]bool{}
	var out []models.User
	for _, e := range s.enrollments {
		if !filter.Matches(e) || seen[e.UserID] {
			continue
		}
		seen[e.UserID] = true
		out = append(out, s.users[e.UserID])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type courseStoreStub struct {
	ids []string
}

func (s courseStoreStub) ListIDs(ctx context.Context) ([]string, error) {
	return s.ids, nil
}

type gradeStoreStub struct {
	grades models.GradeTable
	err    error
}

func (s gradeStoreStub) All(ctx context.Context) (models.GradeTable, error) {
	return s.grades, s.err
}

type externalStoreStub struct {
	mappings models.MappingTable
	logs     models.StatusLogTable
}

func (s externalStoreStub) Mappings(ctx context.Context) (models.MappingTable, error) {
	return s.mappings, nil
}

func (s externalStoreStub) StatusLogs(ctx context.Context) (models.StatusLogTable, error) {
	return s.logs, nil
}

type contactStub struct {
	mu    sync.Mutex
	ids   map[string]string
	err   error
	calls []string
}

func (s *contactStub) Resolve(ctx context.Context, email, componentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, email+"|"+componentID)
	if s.err != nil {
		return "", s.err
	}
	return s.ids[email+"|"+componentID], nil
}

type uploadStub struct {
	mu        sync.Mutex
	filenames []string
	bodies    map[string]string
	err       error
}

func (s *uploadStub) Upload(ctx context.Context, file io.ReadSeeker, filename string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	body, err := io.ReadAll(file)
	if err != nil {
		return false, err
	}
	if s.bodies == nil {
		s.bodies = map[string]string{}
	}
	s.filenames = append(s.filenames, filename)
	s.bodies[filename] = string(body)
	return true, nil
}

var errStub = errors.New("stub failure")

var fixedNow = func() time.Time {
	return time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
}
