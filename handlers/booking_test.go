package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coursebook/middleware"
	"coursebook/models"
	"coursebook/services/booking"
	"coursebook/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBookingService struct {
	mock.Mock
}

func (m *mockBookingService) EnrollStudent(ctx context.Context, courseID, studentID, method string) (*models.BookingResponse, error) {
	args := m.Called(ctx, courseID, studentID, method)
	resp, _ := args.Get(0).(*models.BookingResponse)
	return resp, args.Error(1)
}

func (m *mockBookingService) HandlePaymentWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	args := m.Called(ctx, payload, signatureHeader)
	return args.Error(0)
}

func (m *mockBookingService) CancelBooking(ctx context.Context, bookingID string, requester models.Requester) (*models.Booking, error) {
	args := m.Called(ctx, bookingID, requester)
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Error(1)
}

func (m *mockBookingService) UpdateBookingStatus(ctx context.Context, bookingID string, req models.UpdateBookingStatusRequest, requester models.Requester) (*models.Booking, error) {
	args := m.Called(ctx, bookingID, req, requester)
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Error(1)
}

func (m *mockBookingService) GetBooking(ctx context.Context, bookingID string, requester models.Requester) (*models.Booking, error) {
	args := m.Called(ctx, bookingID, requester)
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Error(1)
}

func (m *mockBookingService) ListStudentBookings(ctx context.Context, studentID string) ([]models.Booking, error) {
	args := m.Called(ctx, studentID)
	b, _ := args.Get(0).([]models.Booking)
	return b, args.Error(1)
}

func (m *mockBookingService) ListInstructorBookings(ctx context.Context, instructorID string) ([]models.Booking, error) {
	args := m.Called(ctx, instructorID)
	b, _ := args.Get(0).([]models.Booking)
	return b, args.Error(1)
}

func (m *mockBookingService) ReconcilePendingRefunds(ctx context.Context, olderThan time.Duration) (int, error) {
	args := m.Called(ctx, olderThan)
	return args.Int(0), args.Error(1)
}

const testSecret = "handler-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestRouter mirrors the production route table for the booking group.
func newTestRouter(svc booking.BookingService) *gin.Engine {
	h := NewBookingHandler(svc)
	tm := utils.NewTokenManager(testSecret)

	r := gin.New()
	g := r.Group("/api/bookings")
	g.POST("/webhook", h.PaymentWebhook)

	auth := g.Group("", middleware.JWTAuthMiddleware(tm))
	auth.POST("", h.CreateBooking)
	auth.GET("/my-bookings", h.ListMyBookings)
	auth.GET("/instructor-bookings", middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin), h.ListInstructorBookings)
	auth.GET("/:id", h.GetBooking)
	auth.PUT("/:id/status", middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin), h.UpdateBookingStatus)
	auth.PUT("/:id/cancel", h.CancelBooking)
	return r
}

func bearer(t *testing.T, id, role string) string {
	t.Helper()
	token, err := utils.NewTokenManager(testSecret).GenerateToken(id, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func do(r *gin.Engine, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func kindErr(kind booking.Kind, msg string) error {
	return &booking.BookingError{Kind: kind, Message: msg}
}

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp utils.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Message
}

func TestCreateBooking(t *testing.T) {
	svc := new(mockBookingService)
	r := newTestRouter(svc)

	b := &models.Booking{ID: "b-1", CourseID: "c-1", StudentID: "s-1", PaymentMethod: models.PaymentOnline, PaymentStatus: models.PaymentPending, Status: models.BookingConfirmed}
	svc.On("EnrollStudent", mock.Anything, "c-1", "s-1", "online").
		Return(&models.BookingResponse{Booking: b, ClientSecret: "pi_secret"}, nil).Once()

	w := do(r, http.MethodPost, "/api/bookings", bearer(t, "s-1", models.RoleStudent), `{"courseId":"c-1","paymentMethod":"online"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.BookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pi_secret", resp.ClientSecret)
	assert.Equal(t, "b-1", resp.Booking.ID)
	svc.AssertExpectations(t)
}

func TestCreateBookingErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"course missing", kindErr(booking.KindNotFound, "Course not found"), http.StatusNotFound, "Course not found"},
		{"course full", kindErr(booking.KindConflict, "Course is already full"), http.StatusBadRequest, "Course is already full"},
		{"already enrolled", kindErr(booking.KindConflict, "You are already enrolled in this course"), http.StatusBadRequest, "You are already enrolled in this course"},
		{"bad method", kindErr(booking.KindValidation, "Invalid payment method"), http.StatusBadRequest, "Invalid payment method"},
		{"gateway down", kindErr(booking.KindExternalService, "Payment provider unavailable"), http.StatusBadGateway, "Payment provider unavailable"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockBookingService)
			r := newTestRouter(svc)
			svc.On("EnrollStudent", mock.Anything, "c-1", "s-1", "cash").Return(nil, tt.err).Once()

			w := do(r, http.MethodPost, "/api/bookings", bearer(t, "s-1", models.RoleStudent), `{"courseId":"c-1","paymentMethod":"cash"}`)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, decodeMessage(t, w))
		})
	}
}

func TestCreateBookingRejectsBadInput(t *testing.T) {
	svc := new(mockBookingService)
	r := newTestRouter(svc)

	w := do(r, http.MethodPost, "/api/bookings", bearer(t, "s-1", models.RoleStudent), `{"paymentMethod":"cash"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/bookings", "", `{"courseId":"c-1","paymentMethod":"cash"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	svc.AssertNotCalled(t, "EnrollStudent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetBookingPassesRequester(t *testing.T) {
	svc := new(mockBookingService)
	r := newTestRouter(svc)

	caller := models.Requester{ID: "s-2", Role: models.RoleStudent}
	svc.On("GetBooking", mock.Anything, "b-1", caller).Return(nil, kindErr(booking.KindForbidden, "Not authorized to view this booking")).Once()
	svc.On("GetBooking", mock.Anything, "b-9", caller).Return(nil, kindErr(booking.KindNotFound, "Booking not found")).Once()

	w := do(r, http.MethodGet, "/api/bookings/b-1", bearer(t, "s-2", models.RoleStudent), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodGet, "/api/bookings/b-9", bearer(t, "s-2", models.RoleStudent), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	svc.AssertExpectations(t)
}

func TestListRoutesAreNotShadowedByID(t *testing.T) {
	svc := new(mockBookingService)
	r := newTestRouter(svc)

	svc.On("ListStudentBookings", mock.Anything, "s-1").Return([]models.Booking{{ID: "b-1"}}, nil).Once()
	svc.On("ListInstructorBookings", mock.Anything, "i-1").Return([]models.Booking{}, nil).Once()

	w := do(r, http.MethodGet, "/api/bookings/my-bookings", bearer(t, "s-1", models.RoleStudent), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"b-1"`)

	w = do(r, http.MethodGet, "/api/bookings/instructor-bookings", bearer(t, "i-1", models.RoleInstructor), "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/bookings/instructor-bookings", bearer(t, "s-1", models.RoleStudent), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	svc.AssertExpectations(t)
	svc.AssertNotCalled(t, "GetBooking", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateBookingStatus(t *testing.T) {
	svc := new(mockBookingService)
	r := newTestRouter(svc)

	attended := "attended"
	caller := models.Requester{ID: "i-1", Role: models.RoleInstructor}
	svc.On("UpdateBookingStatus", mock.Anything, "b-1", models.UpdateBookingStatusRequest{Status: &attended}, caller).
		Return(&models.Booking{ID: "b-1", Status: models.BookingAttended}, nil).Once()

	w := do(r, http.MethodPut, "/api/bookings/b-1/status", bearer(t, "i-1", models.RoleInstructor), `{"status":"attended"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"attended"`)

	w = do(r, http.MethodPut, "/api/bookings/b-1/status", bearer(t, "s-1", models.RoleStudent), `{"status":"attended"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertExpectations(t)
}

func TestCancelBooking(t *testing.T) {
	svc := new(mockBookingService)
	r := newTestRouter(svc)

	caller := models.Requester{ID: "s-1", Role: models.RoleStudent}
	svc.On("CancelBooking", mock.Anything, "b-1", caller).
		Return(&models.Booking{ID: "b-1", Status: models.BookingCancelled, PaymentStatus: models.PaymentRefunded}, nil).Once()
	svc.On("CancelBooking", mock.Anything, "b-2", caller).
		Return(nil, kindErr(booking.KindExternalService, "Refund failed, please try again later")).Once()

	w := do(r, http.MethodPut, "/api/bookings/b-1/cancel", bearer(t, "s-1", models.RoleStudent), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"refunded"`)

	w = do(r, http.MethodPut, "/api/bookings/b-2/cancel", bearer(t, "s-1", models.RoleStudent), "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	svc.AssertExpectations(t)
}

func TestPaymentWebhook(t *testing.T) {
	payload := `{"id":"evt_1","type":"payment_intent.succeeded"}`

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"processed", nil, http.StatusOK},
		{"bad signature", kindErr(booking.KindValidation, "Invalid webhook signature"), http.StatusBadRequest},
		{"store failure asks for redelivery", errors.New("mongo unavailable"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockBookingService)
			r := newTestRouter(svc)
			svc.On("HandlePaymentWebhook", mock.Anything, []byte(payload), "t=1,v1=sig").Return(tt.err).Once()

			req := httptest.NewRequest(http.MethodPost, "/api/bookings/webhook", strings.NewReader(payload))
			req.Header.Set("Stripe-Signature", "t=1,v1=sig")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.err == nil {
				assert.JSONEq(t, `{"received":true}`, w.Body.String())
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	r := gin.New()
	r.GET("/health", HealthCheck)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	// No monitor has run in this process, so nothing is reported healthy.
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
}
