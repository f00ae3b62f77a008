// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package mocks provides testify mocks for the auth package interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/myjournal/myjournal/internal/auth"
)

// MockPrincipalRepository is a mock of auth.PrincipalRepository.
type MockPrincipalRepository struct {
	mock.Mock
}

// NewMockPrincipalRepository creates a mock that asserts its expectations on cleanup.
func NewMockPrincipalRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockPrincipalRepository {
	m := &MockPrincipalRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPrincipalRepository) GetByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	args := m.Called(ctx, email)
	p, _ := args.Get(0).(*auth.Principal)
	return p, args.Error(1)
}

func (m *MockPrincipalRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Principal, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*auth.Principal)
	return p, args.Error(1)
}

func (m *MockPrincipalRepository) UpdateCredential(ctx context.Context, id ulid.ULID, cred auth.Credential) error {
	return m.Called(ctx, id, cred).Error(0)
}

func (m *MockPrincipalRepository) Create(ctx context.Context, p *auth.Principal) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPrincipalRepository) Update(ctx context.Context, p *auth.Principal) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockPrincipalRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPrincipalRepository) List(ctx context.Context) ([]*auth.Principal, error) {
	args := m.Called(ctx)
	ps, _ := args.Get(0).([]*auth.Principal)
	return ps, args.Error(1)
}

// MockSessionStore is a mock of auth.SessionStore.
type MockSessionStore struct {
	mock.Mock
}

// NewMockSessionStore creates a mock that asserts its expectations on cleanup.
func NewMockSessionStore(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockSessionStore {
	m := &MockSessionStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSessionStore) Create(ctx context.Context, session *auth.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockSessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	args := m.Called(ctx, tokenHash)
	s, _ := args.Get(0).(*auth.Session)
	return s, args.Error(1)
}

func (m *MockSessionStore) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	return m.Called(ctx, tokenHash).Error(0)
}

func (m *MockSessionStore) DeleteByPrincipal(ctx context.Context, principalID ulid.ULID) error {
	return m.Called(ctx, principalID).Error(0)
}

func (m *MockSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Derive(password string, salt []byte) ([]byte, error) {
	args := m.Called(password, salt)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockPasswordHasher) DeriveWith(params auth.KDFParams, password string, salt []byte) ([]byte, error) {
	args := m.Called(params, password, salt)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockPasswordHasher) Verify(password string, salt, expected []byte, params auth.KDFParams) (bool, error) {
	args := m.Called(password, salt, expected, params)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) GenerateSalt() ([]byte, error) {
	args := m.Called()
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockPasswordHasher) NewCredential(password string) (auth.Credential, error) {
	args := m.Called(password)
	return args.Get(0).(auth.Credential), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(params auth.KDFParams) bool {
	return m.Called(params).Bool(0)
}

func (m *MockPasswordHasher) Params() auth.KDFParams {
	return m.Called().Get(0).(auth.KDFParams)
}

// MockRecorder is a mock of auth.Recorder.
type MockRecorder struct {
	mock.Mock
}

// NewMockRecorder creates a mock that asserts its expectations on cleanup.
func NewMockRecorder(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockRecorder {
	m := &MockRecorder{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRecorder) RecordAttempt(scheme, outcome string) {
	m.Called(scheme, outcome)
}

func (m *MockRecorder) RecordDerivation(d time.Duration) {
	m.Called(d)
}

var (
	_ auth.PrincipalRepository = (*MockPrincipalRepository)(nil)
	_ auth.SessionStore        = (*MockSessionStore)(nil)
	_ auth.PasswordHasher      = (*MockPasswordHasher)(nil)
	_ auth.Recorder            = (*MockRecorder)(nil)
)
