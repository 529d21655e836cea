package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"coursebook/database/repository"
	"coursebook/models"
	"coursebook/services/payment"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memBookings mirrors the conditional writes of the Mongo booking repository.
type memBookings struct {
	mu   sync.Mutex
	byID map[string]models.Booking
}

func newMemBookings() *memBookings {
	return &memBookings{byID: map[string]models.Booking{}}
}

func (m *memBookings) Create(ctx context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[b.ID]; ok {
		return errors.New("duplicate key")
	}
	m.byID[b.ID] = *b
	return nil
}

func (m *memBookings) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", id, repository.ErrNotFound)
	}
	return &b, nil
}

func (m *memBookings) GetByPaymentID(ctx context.Context, paymentID string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.byID {
		if b.PaymentID == paymentID {
			return &b, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memBookings) list(match func(models.Booking) bool) []models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Booking{}
	for _, b := range m.byID {
		if match(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingDate.After(out[j].BookingDate) })
	return out
}

func (m *memBookings) ListByStudent(ctx context.Context, studentID string) ([]models.Booking, error) {
	return m.list(func(b models.Booking) bool { return b.StudentID == studentID }), nil
}

func (m *memBookings) ListByCourses(ctx context.Context, courseIDs []string) ([]models.Booking, error) {
	set := map[string]bool{}
	for _, id := range courseIDs {
		set[id] = true
	}
	return m.list(func(b models.Booking) bool { return set[b.CourseID] }), nil
}

func (m *memBookings) ListStaleRefundClaims(ctx context.Context, before time.Time) ([]models.Booking, error) {
	return m.list(func(b models.Booking) bool {
		return b.RefundRequestedAt != nil && !b.RefundRequestedAt.After(before) && b.PaymentStatus == models.PaymentCompleted
	}), nil
}

// update applies fn when cond holds, like FindOneAndUpdate with a filter.
func (m *memBookings) update(id string, cond func(models.Booking) bool, fn func(*models.Booking)) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.byID[id]
	if !ok || !cond(b) {
		return nil, repository.ErrConditionFailed
	}
	fn(&b)
	b.Version++
	b.UpdatedAt = time.Now().UTC()
	m.byID[id] = b
	return &b, nil
}

func active(b models.Booking) bool {
	return b.Status == models.BookingConfirmed || b.Status == models.BookingAttended
}

func (m *memBookings) AttachPayment(ctx context.Context, id, paymentID string) error {
	_, err := m.update(id,
		func(b models.Booking) bool { return b.PaymentMethod == models.PaymentOnline && b.PaymentID == "" },
		func(b *models.Booking) { b.PaymentID = paymentID })
	return err
}

func (m *memBookings) TransitionPayment(ctx context.Context, id string, from, to models.PaymentStatus) (*models.Booking, error) {
	return m.update(id,
		func(b models.Booking) bool { return b.Status == models.BookingConfirmed && b.PaymentStatus == from },
		func(b *models.Booking) { b.PaymentStatus = to })
}

func (m *memBookings) Cancel(ctx context.Context, id string, expected models.PaymentStatus) (*models.Booking, error) {
	return m.update(id,
		func(b models.Booking) bool { return active(b) && b.PaymentStatus == expected && b.RefundRequestedAt == nil },
		func(b *models.Booking) { b.Status = models.BookingCancelled })
}

func (m *memBookings) ClaimRefund(ctx context.Context, id string, at time.Time) (*models.Booking, error) {
	return m.update(id,
		func(b models.Booking) bool {
			return active(b) && b.PaymentMethod == models.PaymentOnline &&
				b.PaymentStatus == models.PaymentCompleted && b.RefundRequestedAt == nil
		},
		func(b *models.Booking) { t := at; b.RefundRequestedAt = &t })
}

func (m *memBookings) ReleaseRefundClaim(ctx context.Context, id string) error {
	_, err := m.update(id,
		func(b models.Booking) bool { return b.PaymentStatus == models.PaymentCompleted && b.RefundRequestedAt != nil },
		func(b *models.Booking) { b.RefundRequestedAt = nil })
	return err
}

func (m *memBookings) CommitRefund(ctx context.Context, id, refundID string) (*models.Booking, error) {
	return m.update(id,
		func(b models.Booking) bool { return b.PaymentStatus == models.PaymentCompleted && b.RefundRequestedAt != nil },
		func(b *models.Booking) {
			b.Status = models.BookingCancelled
			b.PaymentStatus = models.PaymentRefunded
			b.RefundID = refundID
			b.RefundRequestedAt = nil
		})
}

func (m *memBookings) OverwriteStatus(ctx context.Context, id string, status *models.BookingStatus, paymentStatus *models.PaymentStatus) (*models.Booking, error) {
	b, err := m.update(id,
		func(models.Booking) bool { return true },
		func(b *models.Booking) {
			if status != nil {
				b.Status = *status
			}
			if paymentStatus != nil {
				b.PaymentStatus = *paymentStatus
			}
		})
	if errors.Is(err, repository.ErrConditionFailed) {
		return nil, repository.ErrNotFound
	}
	return b, err
}

// memCourses performs the roster append under one lock, like the conditional update.
type memCourses struct {
	mu      sync.Mutex
	courses map[string]*models.Course
	adds    int
	// beforeGet runs once, ahead of the next GetByID.
	beforeGet func()
}

func newMemCourses(courses ...models.Course) *memCourses {
	m := &memCourses{courses: map[string]*models.Course{}}
	for i := range courses {
		c := courses[i]
		m.courses[c.ID] = &c
	}
	return m
}

func (m *memCourses) GetByID(ctx context.Context, id string) (*models.Course, error) {
	m.mu.Lock()
	hook := m.beforeGet
	m.beforeGet = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	cp.Students = append([]string(nil), c.Students...)
	return &cp, nil
}

func (m *memCourses) ListByInstructor(ctx context.Context, instructorID string) ([]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Course{}
	for _, c := range m.courses {
		if c.InstructorID == instructorID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCourses) AddStudent(ctx context.Context, courseID, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[courseID]
	if !ok || !c.IsActive || c.HasStudent(studentID) || len(c.Students) >= c.Capacity {
		return repository.ErrConditionFailed
	}
	c.Students = append(c.Students, studentID)
	m.adds++
	return nil
}

func (m *memCourses) RemoveStudent(ctx context.Context, courseID, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[courseID]
	if !ok {
		return repository.ErrNotFound
	}
	kept := c.Students[:0]
	for _, s := range c.Students {
		if s != studentID {
			kept = append(kept, s)
		}
	}
	c.Students = kept
	return nil
}

func (m *memCourses) roster(courseID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.courses[courseID].Students...)
}

const validSignature = "t=1,v1=valid"

// fakeGateway treats the webhook payload as a JSON-encoded PaymentEvent.
type fakeGateway struct {
	mu         sync.Mutex
	intents    int
	refunds    int
	refundKeys []string
	made       map[string]*models.Refund
	intentErr  error
	refundErr  error
	findErr    error
}

func (g *fakeGateway) CreateIntent(ctx context.Context, req models.PaymentIntentRequest) (*models.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.intentErr != nil {
		return nil, g.intentErr
	}
	g.intents++
	id := fmt.Sprintf("pi_%d", g.intents)
	return &models.PaymentIntent{PaymentID: id, ClientSecret: id + "_secret", Status: "requires_payment_method"}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, paymentID, idempotencyKey string) (*models.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	if r, ok := g.made[paymentID]; ok {
		return r, nil
	}
	g.refunds++
	g.refundKeys = append(g.refundKeys, idempotencyKey)
	r := &models.Refund{RefundID: "re_" + idempotencyKey, PaymentID: paymentID, Status: "succeeded"}
	if g.made == nil {
		g.made = map[string]*models.Refund{}
	}
	g.made[paymentID] = r
	return r, nil
}

func (g *fakeGateway) FindRefund(ctx context.Context, paymentID string) (*models.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.findErr != nil {
		return nil, g.findErr
	}
	return g.made[paymentID], nil
}

func (g *fakeGateway) ParseWebhook(payload []byte, signatureHeader string) (*models.PaymentEvent, error) {
	if signatureHeader != validSignature {
		return nil, payment.ErrInvalidSignature
	}
	var ev models.PaymentEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (g *fakeGateway) refundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunds
}

type recordingEffects struct {
	mu      sync.Mutex
	effects []models.Effect
}

func (r *recordingEffects) Dispatch(ctx context.Context, effects ...models.Effect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects = append(r.effects, effects...)
}

func (r *recordingEffects) ofType(kind string) []models.Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Effect
	for _, e := range r.effects {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingEffects) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.effects)
}

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[eventID], nil
}

func (d *memDeduper) Remember(ctx context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	d.seen[eventID] = true
	return nil
}

type fixture struct {
	svc      *DefaultBookingService
	bookings *memBookings
	courses  *memCourses
	gateway  *fakeGateway
	effects  *recordingEffects
}

const (
	courseID     = "course-1"
	instructorID = "instructor-1"
)

func newFixture(t *testing.T, capacity int, deduper EventDeduper) *fixture {
	t.Helper()
	f := &fixture{
		bookings: newMemBookings(),
		courses: newMemCourses(models.Course{
			ID:           courseID,
			Title:        "Intro to Go",
			InstructorID: instructorID,
			Price:        49.99,
			Capacity:     capacity,
			IsActive:     true,
		}),
		gateway: &fakeGateway{},
		effects: &recordingEffects{},
	}
	svc, err := NewDefaultBookingService(Dependencies{
		Bookings: f.bookings,
		Courses:  f.courses,
		Gateway:  f.gateway,
		Effects:  f.effects,
		Deduper:  deduper,
		Logger:   zap.NewNop(),
		Currency: "usd",
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func student(id string) models.Requester {
	return models.Requester{ID: id, Role: models.RoleStudent}
}

func succeededEvent(t *testing.T, eventID, paymentID string) []byte {
	t.Helper()
	b, err := json.Marshal(models.PaymentEvent{EventID: eventID, Type: models.PaymentEventSucceeded, PaymentID: paymentID})
	require.NoError(t, err)
	return b
}
