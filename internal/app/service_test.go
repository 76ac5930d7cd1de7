package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fitcore/attendance-service/internal/domain"
	"github.com/fitcore/attendance-service/internal/store"
)

type serviceRepoStub struct {
	store.Repository

	user       *domain.User
	active     *domain.AttendanceRecord
	membership *domain.Membership

	created      *domain.AttendanceRecord
	createErr    error
	closed       *domain.AttendanceRecord
	closeErr     error
	appendedSubs []*domain.HistoricMembershipEntry
}

func (s *serviceRepoStub) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if s.user == nil || s.user.ID != userID {
		return nil, store.ErrUserNotFound
	}
	return s.user, nil
}

func (s *serviceRepoStub) FindActiveAttendanceByUserID(ctx context.Context, userID uuid.UUID) (*domain.AttendanceRecord, error) {
	return s.active, nil
}

func (s *serviceRepoStub) CreateAttendance(ctx context.Context, record *domain.AttendanceRecord) error {
	if s.createErr != nil {
		return s.createErr
	}
	record.CreatedAt = record.EntranceTime
	record.UpdatedAt = record.EntranceTime
	s.created = record
	return nil
}

func (s *serviceRepoStub) CloseActiveAttendance(ctx context.Context, userID uuid.UUID, exitTime time.Time) (*domain.AttendanceRecord, error) {
	if s.closeErr != nil {
		return nil, s.closeErr
	}
	if s.active == nil {
		return nil, store.ErrNotCheckedIn
	}
	closed := *s.active
	closed.ExitTime = &exitTime
	closed.IsActive = false
	s.closed = &closed
	return &closed, nil
}

func (s *serviceRepoStub) FindMembershipByID(ctx context.Context, membershipID uuid.UUID) (*domain.Membership, error) {
	if s.membership == nil || s.membership.ID != membershipID {
		return nil, store.ErrMembershipNotFound
	}
	return s.membership, nil
}

func (s *serviceRepoStub) AppendSubscriptionEntry(ctx context.Context, entry *domain.HistoricMembershipEntry) error {
	s.appendedSubs = append(s.appendedSubs, entry)
	return nil
}

type fixedQuotaStub struct {
	quota domain.Quota
}

func (s *fixedQuotaStub) AvailableAttendances(ctx context.Context, userID uuid.UUID) domain.Quota {
	return s.quota
}

func (s *fixedQuotaStub) Remaining(ctx context.Context, userID uuid.UUID, t domain.AttendanceType) int {
	return s.quota.Remaining(t)
}

type recordingPublisher struct {
	routingKeys []string
	bodies      []interface{}
	err         error
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.routingKeys = append(p.routingKeys, routingKey)
	p.bodies = append(p.bodies, body)
	return nil
}

func newTestService(repo *serviceRepoStub, quota QuotaSource, events EventPublisher, at time.Time) *Service {
	svc := NewService(repo, quota, NewStatsAggregator(repo), events)
	svc.now = func() time.Time { return at }
	return svc
}

func TestCheckIn_CreatesActiveRecord(t *testing.T) {
	userID := uuid.New()
	at := time.Date(2026, time.March, 10, 23, 45, 0, 0, time.UTC)
	repo := &serviceRepoStub{user: &domain.User{ID: userID}}
	publisher := &recordingPublisher{}
	svc := newTestService(repo, &fixedQuotaStub{quota: domain.Quota{Gym: 3, Classes: 1}}, publisher, at)

	record, err := svc.CheckIn(context.Background(), userID, domain.AttendanceTypeGym)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !record.IsActive {
		t.Fatal("expected new record to be active")
	}
	if !record.EntranceTime.Equal(at) {
		t.Fatalf("expected entrance_time=%v, got %v", at, record.EntranceTime)
	}
	if record.DateKey != "2026-03-10" {
		t.Fatalf("expected date_key derived from the entrance instant, got %q", record.DateKey)
	}
	if record.ExitTime != nil {
		t.Fatal("expected exit_time to be unset on check-in")
	}
	if repo.created == nil {
		t.Fatal("expected record to be persisted")
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != domain.EventAttendanceCheckedIn {
		t.Fatalf("expected one %q event, got %v", domain.EventAttendanceCheckedIn, publisher.routingKeys)
	}
}

func TestCheckIn_RejectsWhenAlreadyInside(t *testing.T) {
	userID := uuid.New()
	repo := &serviceRepoStub{
		user:   &domain.User{ID: userID},
		active: &domain.AttendanceRecord{ID: uuid.New(), UserID: userID, IsActive: true},
	}
	svc := newTestService(repo, &fixedQuotaStub{quota: domain.Quota{Gym: 3}}, nil, time.Now())

	_, err := svc.CheckIn(context.Background(), userID, domain.AttendanceTypeGym)
	if !errors.Is(err, store.ErrAlreadyCheckedIn) {
		t.Fatalf("expected ErrAlreadyCheckedIn, got %v", err)
	}
	if repo.created != nil {
		t.Fatal("expected no record to be persisted")
	}
}

func TestCheckIn_RejectsUnknownUser(t *testing.T) {
	repo := &serviceRepoStub{}
	svc := newTestService(repo, &fixedQuotaStub{quota: domain.Quota{Gym: 3}}, nil, time.Now())

	_, err := svc.CheckIn(context.Background(), uuid.New(), domain.AttendanceTypeGym)
	if !errors.Is(err, store.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCheckIn_RejectsWhenQuotaExhausted(t *testing.T) {
	userID := uuid.New()
	repo := &serviceRepoStub{user: &domain.User{ID: userID}}
	svc := newTestService(repo, &fixedQuotaStub{quota: domain.Quota{Gym: 0, Classes: 2}}, nil, time.Now())

	_, err := svc.CheckIn(context.Background(), userID, domain.AttendanceTypeGym)
	if !errors.Is(err, ErrNoAvailableAttendances) {
		t.Fatalf("expected ErrNoAvailableAttendances, got %v", err)
	}
	if repo.created != nil {
		t.Fatal("expected no record to be persisted after quota denial")
	}

	// The class quota is independent of the exhausted gym quota.
	if _, err := svc.CheckIn(context.Background(), userID, domain.AttendanceTypeClass); err != nil {
		t.Fatalf("expected class check-in to succeed, got %v", err)
	}
}

func TestCheckIn_SurfacesConcurrentDuplicate(t *testing.T) {
	userID := uuid.New()
	repo := &serviceRepoStub{
		user:      &domain.User{ID: userID},
		createErr: store.ErrAlreadyCheckedIn,
	}
	svc := newTestService(repo, &fixedQuotaStub{quota: domain.Quota{Gym: 3}}, nil, time.Now())

	_, err := svc.CheckIn(context.Background(), userID, domain.AttendanceTypeGym)
	if !errors.Is(err, store.ErrAlreadyCheckedIn) {
		t.Fatalf("expected ErrAlreadyCheckedIn from the insert race, got %v", err)
	}
}

type depletionRepoStub struct {
	serviceRepoStub

	entries []domain.HistoricMembershipEntry
	gymUsed int
}

func (s *depletionRepoStub) GetSubscriptionEntries(ctx context.Context, userID uuid.UUID) ([]domain.HistoricMembershipEntry, error) {
	return s.entries, nil
}

func (s *depletionRepoStub) CountAttendanceInWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, int, error) {
	return s.gymUsed, 0, nil
}

func (s *depletionRepoStub) CreateAttendance(ctx context.Context, record *domain.AttendanceRecord) error {
	if err := s.serviceRepoStub.CreateAttendance(ctx, record); err != nil {
		return err
	}
	s.gymUsed++
	return nil
}

func TestCheckIn_DepletesMonthlyQuota(t *testing.T) {
	userID := uuid.New()
	repo := &depletionRepoStub{
		serviceRepoStub: serviceRepoStub{user: &domain.User{ID: userID}},
		entries: []domain.HistoricMembershipEntry{
			{ID: uuid.New(), UserID: userID, MaxGymPerCycle: 2},
		},
	}
	svc := NewService(repo, NewQuotaCalculator(repo), NewStatsAggregator(repo), nil)

	for i := 0; i < 2; i++ {
		record, err := svc.CheckIn(context.Background(), userID, domain.AttendanceTypeGym)
		if err != nil {
			t.Fatalf("expected check-in %d to succeed, got %v", i+1, err)
		}
		repo.active = record
		if _, err := svc.CheckOut(context.Background(), userID); err != nil {
			t.Fatalf("expected check-out %d to succeed, got %v", i+1, err)
		}
		repo.active = nil
	}

	_, err := svc.CheckIn(context.Background(), userID, domain.AttendanceTypeGym)
	if !errors.Is(err, ErrNoAvailableAttendances) {
		t.Fatalf("expected third check-in to be denied, got %v", err)
	}
}

func TestCheckOut_ClosesActiveRecord(t *testing.T) {
	userID := uuid.New()
	entrance := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	exit := entrance.Add(90 * time.Minute)
	repo := &serviceRepoStub{
		user: &domain.User{ID: userID},
		active: &domain.AttendanceRecord{
			ID:           uuid.New(),
			UserID:       userID,
			Type:         domain.AttendanceTypeClass,
			EntranceTime: entrance,
			IsActive:     true,
		},
	}
	publisher := &recordingPublisher{}
	svc := newTestService(repo, &fixedQuotaStub{}, publisher, exit)

	record, err := svc.CheckOut(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if record.IsActive {
		t.Fatal("expected closed record to be inactive")
	}
	if record.ExitTime == nil || !record.ExitTime.Equal(exit) {
		t.Fatalf("expected exit_time=%v, got %v", exit, record.ExitTime)
	}
	if !record.EntranceTime.Equal(entrance) {
		t.Fatal("expected entrance_time to be preserved on check-out")
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != domain.EventAttendanceCheckedOut {
		t.Fatalf("expected one %q event, got %v", domain.EventAttendanceCheckedOut, publisher.routingKeys)
	}
}

func TestCheckOut_RejectsWhenOutside(t *testing.T) {
	userID := uuid.New()
	repo := &serviceRepoStub{user: &domain.User{ID: userID}}
	svc := newTestService(repo, &fixedQuotaStub{}, nil, time.Now())

	_, err := svc.CheckOut(context.Background(), userID)
	if !errors.Is(err, store.ErrNotCheckedIn) {
		t.Fatalf("expected ErrNotCheckedIn, got %v", err)
	}
}

func TestCheckOut_PublishFailureDoesNotFailCheckOut(t *testing.T) {
	userID := uuid.New()
	repo := &serviceRepoStub{
		user:   &domain.User{ID: userID},
		active: &domain.AttendanceRecord{ID: uuid.New(), UserID: userID, IsActive: true},
	}
	publisher := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestService(repo, &fixedQuotaStub{}, publisher, time.Now())

	if _, err := svc.CheckOut(context.Background(), userID); err != nil {
		t.Fatalf("expected check-out to succeed despite publish failure, got %v", err)
	}
}

func TestStatus_ReflectsCheckInCheckOutRoundTrip(t *testing.T) {
	userID := uuid.New()
	at := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	repo := &serviceRepoStub{user: &domain.User{ID: userID}}
	svc := newTestService(repo, &fixedQuotaStub{quota: domain.Quota{Gym: 2}}, nil, at)

	status, err := svc.Status(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if status.IsInside || status.CurrentAttendance != nil {
		t.Fatal("expected user to start outside")
	}
	if status.AvailableAttendances.Gym != 2 {
		t.Fatalf("expected quota to be reported, got %+v", status.AvailableAttendances)
	}

	record, err := svc.CheckIn(context.Background(), userID, domain.AttendanceTypeGym)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	repo.active = record

	status, err = svc.Status(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !status.IsInside || status.CurrentAttendance == nil {
		t.Fatal("expected user to be inside after check-in")
	}
	if status.CurrentAttendance.ID != record.ID {
		t.Fatal("expected current attendance to be the open record")
	}

	if _, err := svc.CheckOut(context.Background(), userID); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	repo.active = nil

	status, err = svc.Status(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if status.IsInside {
		t.Fatal("expected user to be outside after check-out")
	}
}

func TestHistory_RejectsInvertedRange(t *testing.T) {
	userID := uuid.New()
	repo := &serviceRepoStub{user: &domain.User{ID: userID}}
	svc := newTestService(repo, &fixedQuotaStub{}, nil, time.Now())

	from := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -7)
	_, err := svc.History(context.Background(), userID, domain.HistoryFilter{From: &from, To: &to})
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
}

func TestPurchaseMembership_SnapshotsCatalogEntry(t *testing.T) {
	userID := uuid.New()
	at := time.Date(2026, time.February, 1, 8, 0, 0, 0, time.UTC)
	membership := &domain.Membership{
		ID:                 uuid.New(),
		Name:               "Standard",
		Cost:               4900,
		MaxGymPerCycle:     12,
		MaxClassesPerCycle: 4,
		DurationMonths:     1,
	}
	repo := &serviceRepoStub{user: &domain.User{ID: userID}, membership: membership}
	svc := newTestService(repo, &fixedQuotaStub{}, nil, at)

	entry, err := svc.PurchaseMembership(context.Background(), userID, membership.ID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if entry.MembershipID != membership.ID || entry.UserID != userID {
		t.Fatal("expected entry to reference the user and catalog row")
	}
	if entry.MaxGymPerCycle != 12 || entry.MaxClassesPerCycle != 4 || entry.Cost != 4900 {
		t.Fatalf("expected entry to freeze the catalog terms, got %+v", entry)
	}
	if !entry.PurchaseDate.Equal(at) {
		t.Fatalf("expected purchase_date=%v, got %v", at, entry.PurchaseDate)
	}
	if len(repo.appendedSubs) != 1 {
		t.Fatalf("expected one appended entry, got %d", len(repo.appendedSubs))
	}

	// Editing the catalog row afterwards must not change the snapshot.
	membership.MaxGymPerCycle = 99
	if entry.MaxGymPerCycle != 12 {
		t.Fatal("expected snapshot to be immune to catalog edits")
	}
}

func TestPurchaseMembership_RejectsUnknownMembership(t *testing.T) {
	userID := uuid.New()
	repo := &serviceRepoStub{user: &domain.User{ID: userID}}
	svc := newTestService(repo, &fixedQuotaStub{}, nil, time.Now())

	_, err := svc.PurchaseMembership(context.Background(), userID, uuid.New())
	if !errors.Is(err, store.ErrMembershipNotFound) {
		t.Fatalf("expected ErrMembershipNotFound, got %v", err)
	}
}
