package handlers

import (
	"io"
	"net/http"

	"coursebook/middleware"
	"coursebook/models"
	"coursebook/services/booking"
	"coursebook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxWebhookBody caps the raw webhook payload read into memory.
const maxWebhookBody = 64 << 10

// BookingHandler exposes the enrollment coordinator over HTTP.
type BookingHandler struct {
	Service booking.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(svc booking.BookingService) *BookingHandler {
	return &BookingHandler{Service: svc}
}

// statusFor maps a coordinator error kind to its HTTP status.
func statusFor(kind booking.Kind) int {
	switch kind {
	case booking.KindNotFound:
		return http.StatusNotFound
	case booking.KindForbidden:
		return http.StatusForbidden
	case booking.KindConflict, booking.KindValidation:
		return http.StatusBadRequest
	case booking.KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(booking.KindOf(err))
	if status == http.StatusInternalServerError {
		getLogger(c).Error("booking request failed", zap.String("path", c.FullPath()), zap.Error(err))
		utils.JSONError(c, status, "Internal server error", "")
		return
	}
	utils.JSONError(c, status, booking.MessageOf(err), "")
}

func requester(c *gin.Context) (models.Requester, bool) {
	req, ok := middleware.RequesterFromContext(c)
	if !ok {
		utils.JSONError(c, http.StatusUnauthorized, "Unauthorized", "missing authenticated user")
	}
	return req, ok
}

// CreateBooking handles POST /api/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	req, ok := requester(c)
	if !ok {
		return
	}

	var input models.CreateBookingRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	resp, err := h.Service.EnrollStudent(c.Request.Context(), input.CourseID, req.ID, input.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetBooking handles GET /api/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	req, ok := requester(c)
	if !ok {
		return
	}

	b, err := h.Service.GetBooking(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

// ListMyBookings handles GET /api/bookings/my-bookings.
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	req, ok := requester(c)
	if !ok {
		return
	}

	bookings, err := h.Service.ListStudentBookings(c.Request.Context(), req.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// ListInstructorBookings handles GET /api/bookings/instructor-bookings.
func (h *BookingHandler) ListInstructorBookings(c *gin.Context) {
	req, ok := requester(c)
	if !ok {
		return
	}

	bookings, err := h.Service.ListInstructorBookings(c.Request.Context(), req.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// UpdateBookingStatus handles PUT /api/bookings/:id/status.
func (h *BookingHandler) UpdateBookingStatus(c *gin.Context) {
	req, ok := requester(c)
	if !ok {
		return
	}

	var input models.UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	b, err := h.Service.UpdateBookingStatus(c.Request.Context(), c.Param("id"), input, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

// CancelBooking handles PUT /api/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	req, ok := requester(c)
	if !ok {
		return
	}

	b, err := h.Service.CancelBooking(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

// PaymentWebhook handles POST /api/bookings/webhook. The body must reach the
// signature check untouched, so it is read raw instead of bound.
func (h *BookingHandler) PaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid webhook body", err.Error())
		return
	}

	if err := h.Service.HandlePaymentWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		// A non-2xx makes the gateway redeliver, which is what we want for
		// anything but a bad signature or payload.
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
