// Package storetest provides an in-memory implementation of the store
// interfaces for package tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"visa-portal/internal/models"
	"visa-portal/internal/store"
)

// Memory satisfies store.Stores, store.TxStores and store.TxRunner.
// Records are copied on the way in and out so callers cannot mutate stored
// state by accident.
type Memory struct {
	mu       sync.Mutex
	apps     map[string]*models.Application
	meetings map[string]*models.Meeting
	audit    []models.AuditEntry
	locks    []string

	// Optional failure injection.
	AuditErr  error
	CreateErr error
}

func NewMemory() *Memory {
	return &Memory{
		apps:     make(map[string]*models.Application),
		meetings: make(map[string]*models.Meeting),
	}
}

func (m *Memory) Applications() store.ApplicationStore { return memApps{m} }
func (m *Memory) Meetings() store.MeetingStore         { return memMeetings{m} }
func (m *Memory) Audit() store.AuditStore              { return memAudit{m} }

func (m *Memory) LockKey(_ context.Context, key string) error {
	m.mu.Lock()
	m.locks = append(m.locks, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) WithTx(_ context.Context, fn func(tx store.TxStores) error) error {
	return fn(m)
}

// AddMeeting seeds a meeting and returns it.
func (m *Memory) AddMeeting(meeting models.Meeting) *models.Meeting {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := meeting
	m.meetings[cp.ID] = &cp
	return &cp
}

// AddApplication seeds an application.
func (m *Memory) AddApplication(app models.Application) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := app
	m.apps[cp.ID] = &cp
}

func (m *Memory) CountApplications() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.apps)
}

func (m *Memory) AuditEntries() []models.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditEntry(nil), m.audit...)
}

func (m *Memory) Locks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.locks...)
}

type memApps struct{ m *Memory }

func clone(a *models.Application) *models.Application {
	cp := *a
	return &cp
}

func (s memApps) GetByID(_ context.Context, id string) (*models.Application, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	app, ok := s.m.apps[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(app), nil
}

func (s memApps) FindByPassportAndMeeting(_ context.Context, passport, meetingID string) (*models.Application, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var found *models.Application
	for _, app := range s.m.apps {
		if app.PassportNumber != passport || app.MeetingID != meetingID {
			continue
		}
		if found == nil || app.CreatedAt.Before(found.CreatedAt) {
			found = app
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return clone(found), nil
}

func (s memApps) list(keep func(*models.Application) bool) []*models.Application {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*models.Application
	for _, app := range s.m.apps {
		if keep(app) {
			out = append(out, clone(app))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s memApps) ListByMeeting(_ context.Context, meetingID string) ([]*models.Application, error) {
	return s.list(func(a *models.Application) bool { return a.MeetingID == meetingID }), nil
}

func (s memApps) ListByOwner(_ context.Context, userID string) ([]*models.Application, error) {
	return s.list(func(a *models.Application) bool { return a.UserID == userID }), nil
}

func (s memApps) Create(_ context.Context, app *models.Application) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.CreateErr != nil {
		return s.m.CreateErr
	}
	s.m.apps[app.ID] = clone(app)
	return nil
}

func (s memApps) Update(_ context.Context, app *models.Application) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	old, ok := s.m.apps[app.ID]
	if !ok {
		return store.ErrNotFound
	}
	cp := clone(app)
	cp.UserID, cp.MeetingID, cp.CreatedAt = old.UserID, old.MeetingID, old.CreatedAt
	s.m.apps[app.ID] = cp
	return nil
}

func (s memApps) Delete(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.apps[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.m.apps, id)
	return nil
}

func (s memApps) MarkLetterGenerated(_ context.Context, id string, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	app, ok := s.m.apps[id]
	if !ok {
		return store.ErrNotFound
	}
	app.PDFGenerated = true
	app.PDFGeneratedAt = &at
	app.UpdatedAt = at
	return nil
}

type memMeetings struct{ m *Memory }

func (s memMeetings) GetByID(_ context.Context, id string) (*models.Meeting, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	meeting, ok := s.m.meetings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *meeting
	return &cp, nil
}

func (s memMeetings) GetByName(_ context.Context, name string) (*models.Meeting, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, meeting := range s.m.meetings {
		if meeting.Name == name {
			cp := *meeting
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s memMeetings) Create(_ context.Context, meeting *models.Meeting) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cp := *meeting
	s.m.meetings[cp.ID] = &cp
	return nil
}

func (s memMeetings) List(_ context.Context, activeOnly bool) ([]*models.Meeting, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*models.Meeting
	for _, meeting := range s.m.meetings {
		if activeOnly && !meeting.Active {
			continue
		}
		cp := *meeting
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

type memAudit struct{ m *Memory }

func (s memAudit) Record(_ context.Context, entry models.AuditEntry) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.AuditErr != nil {
		return s.m.AuditErr
	}
	s.m.audit = append(s.m.audit, entry)
	return nil
}
