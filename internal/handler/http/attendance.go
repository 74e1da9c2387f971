package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/attendance-backend-go/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/timeutil"
	"github.com/cmlabs-hris/attendance-backend-go/internal/pkg/validator"
	"github.com/cmlabs-hris/attendance-backend-go/internal/service/file"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead leaves room for form fields around the photo
const multipartOverhead = 1 << 20

type AttendanceHandler interface {
	CheckIn(w http.ResponseWriter, r *http.Request)
	ValidateCheckIn(w http.ResponseWriter, r *http.Request)
	CheckOut(w http.ResponseWriter, r *http.Request)
	ValidateCheckOut(w http.ResponseWriter, r *http.Request)
	GetIncomplete(w http.ResponseWriter, r *http.Request)
	GetToday(w http.ResponseWriter, r *http.Request)
	History(w http.ResponseWriter, r *http.Request)
	ListByUser(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)

	// SSE
	GetStreamToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type StreamTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

type attendanceHandlerImpl struct {
	attendanceService attendance.AttendanceService
	fileService       file.FileService
	jwtService        jwt.Service
	hub               *sse.Hub
	clock             timeutil.Clock
	maxUploadSize     int64
}

func NewAttendanceHandler(
	attendanceService attendance.AttendanceService,
	fileService file.FileService,
	jwtService jwt.Service,
	hub *sse.Hub,
	clock timeutil.Clock,
	maxUploadSize int64,
) AttendanceHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &attendanceHandlerImpl{
		attendanceService: attendanceService,
		fileService:       fileService,
		jwtService:        jwtService,
		hub:               hub,
		clock:             clock,
		maxUploadSize:     maxUploadSize,
	}
}

// parsePhotoUpload reads the multipart "photo" field. The caller closes req.File.
func (h *attendanceHandlerImpl) parsePhotoUpload(w http.ResponseWriter, r *http.Request) (attendance.PhotoUploadRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return attendance.PhotoUploadRequest{}, attendance.ErrPhotoTooLarge
		}
		slog.Error("Failed to parse multipart form", "error", err)
		return attendance.PhotoUploadRequest{}, attendance.ErrPhotoRequired
	}

	req := attendance.PhotoUploadRequest{
		ActingUserID: r.FormValue("user_id"),
		MaxSize:      h.maxUploadSize,
	}

	f, header, err := r.FormFile("photo")
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) {
			slog.Error("Failed to get file from form", "error", err)
		}
		return req, attendance.ErrPhotoRequired
	}
	req.File = f
	req.FileHeader = header

	if err := req.Validate(); err != nil {
		f.Close()
		return req, err
	}
	return req, nil
}

// resolveTargetUser returns the user an action applies to. Only admins may
// name someone other than themselves.
func resolveTargetUser(claims jwt.Claims, requested string) (string, error) {
	if requested == "" || requested == claims.UserID {
		return claims.UserID, nil
	}
	if !claims.IsAdmin() {
		return "", user.ErrInsufficientPermissions
	}
	if !validator.IsValidUUID(requested) {
		return "", user.ErrUserNotFound
	}
	return requested, nil
}

// storePhoto uploads the photo and returns a cleanup that removes it again
func (h *attendanceHandlerImpl) storePhoto(r *http.Request, userID, kind string, req attendance.PhotoUploadRequest) (file.StoredPhoto, func(), error) {
	stored, err := h.fileService.UploadAttendancePhoto(r.Context(), userID, h.clock.Now(), kind, req.File)
	if err != nil {
		return file.StoredPhoto{}, nil, err
	}

	cleanup := func() {
		if err := h.fileService.DeleteFile(r.Context(), stored.Path); err != nil {
			slog.Error("Failed to delete rejected attendance photo", "error", err, "path", stored.Path)
		}
	}
	return stored, cleanup, nil
}

// CheckIn implements AttendanceHandler.
func (h *attendanceHandlerImpl) CheckIn(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, auth.ErrInvalidToken)
		return
	}

	req, err := h.parsePhotoUpload(w, r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	defer req.File.Close()

	targetUserID, err := resolveTargetUser(claims, req.ActingUserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	stored, cleanup, err := h.storePhoto(r, targetUserID, file.KindCheckIn, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.attendanceService.CheckIn(r.Context(), targetUserID, stored.URL)
	if err != nil {
		cleanup()
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Check-in successful", result)
}

// ValidateCheckIn implements AttendanceHandler.
func (h *attendanceHandlerImpl) ValidateCheckIn(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, auth.ErrInvalidToken)
		return
	}

	targetUserID, err := resolveTargetUser(claims, r.URL.Query().Get("user_id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, h.attendanceService.ValidateCheckIn(r.Context(), targetUserID))
}

// actorForRecord returns the user a check-out on record id is performed as.
// Admins act as the record's owner.
func (h *attendanceHandlerImpl) actorForRecord(r *http.Request, claims jwt.Claims, id string) string {
	if !claims.IsAdmin() {
		return claims.UserID
	}
	record, err := h.attendanceService.GetRecord(r.Context(), id)
	if err != nil {
		return claims.UserID
	}
	return record.UserID
}

// CheckOut implements AttendanceHandler.
func (h *attendanceHandlerImpl) CheckOut(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, auth.ErrInvalidToken)
		return
	}

	id := chi.URLParam(r, "id")
	if !validator.IsValidUUID(id) {
		response.HandleError(w, attendance.ErrAttendanceNotFound)
		return
	}

	req, err := h.parsePhotoUpload(w, r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	defer req.File.Close()

	actor := h.actorForRecord(r, claims, id)

	stored, cleanup, err := h.storePhoto(r, actor, file.KindCheckOut, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.attendanceService.CheckOut(r.Context(), id, actor, stored.URL)
	if err != nil {
		cleanup()
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Check-out successful", result)
}

// ValidateCheckOut implements AttendanceHandler.
func (h *attendanceHandlerImpl) ValidateCheckOut(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, auth.ErrInvalidToken)
		return
	}

	id := chi.URLParam(r, "id")
	if !validator.IsValidUUID(id) {
		response.Success(w, attendance.ValidationResult{Allowed: false, Message: attendance.ErrAttendanceNotFound.Error()})
		return
	}

	response.Success(w, h.attendanceService.ValidateCheckOut(r.Context(), id, h.actorForRecord(r, claims, id)))
}

// GetIncomplete implements AttendanceHandler.
func (h *attendanceHandlerImpl) GetIncomplete(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, auth.ErrInvalidToken)
		return
	}

	result, err := h.attendanceService.GetOpenRecord(r.Context(), claims.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// GetToday implements AttendanceHandler.
func (h *attendanceHandlerImpl) GetToday(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, auth.ErrInvalidToken)
		return
	}

	result, err := h.attendanceService.GetToday(r.Context(), claims.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// parseAttendanceFilter reads list filters from the query string
func parseAttendanceFilter(r *http.Request) attendance.AttendanceFilter {
	query := r.URL.Query()
	filter := attendance.AttendanceFilter{}

	optional := func(key string) *string {
		if v := query.Get(key); v != "" {
			return &v
		}
		return nil
	}

	filter.UserID = optional("user_id")
	filter.Date = optional("date")
	filter.StartDate = optional("start_date")
	filter.EndDate = optional("end_date")
	filter.Status = optional("status")

	// Pagination. Invalid numbers are left for Validate to report
	if p := query.Get("page"); p != "" {
		if pageNum, err := strconv.Atoi(p); err == nil {
			filter.Page = pageNum
		} else {
			filter.Page = -1
		}
	}
	if l := query.Get("limit"); l != "" {
		if limitNum, err := strconv.Atoi(l); err == nil {
			filter.Limit = limitNum
		} else {
			filter.Limit = -1
		}
	}

	filter.SortOrder = query.Get("sort_order")
	return filter
}

// History implements AttendanceHandler.
func (h *attendanceHandlerImpl) History(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, auth.ErrInvalidToken)
		return
	}

	filter := parseAttendanceFilter(r)
	filter.UserID = nil

	results, err := h.attendanceService.ListByUser(r.Context(), claims.UserID, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, results)
}

// ListByUser implements AttendanceHandler.
func (h *attendanceHandlerImpl) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if !validator.IsValidUUID(userID) {
		response.HandleError(w, user.ErrUserNotFound)
		return
	}

	filter := parseAttendanceFilter(r)
	filter.UserID = nil

	results, err := h.attendanceService.ListByUser(r.Context(), userID, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, results)
}

// Get implements AttendanceHandler.
func (h *attendanceHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, auth.ErrInvalidToken)
		return
	}

	id := chi.URLParam(r, "id")
	if !validator.IsValidUUID(id) {
		response.HandleError(w, attendance.ErrAttendanceNotFound)
		return
	}

	result, err := h.attendanceService.GetRecord(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if !claims.IsAdmin() && result.UserID != claims.UserID {
		response.HandleError(w, attendance.ErrForbidden)
		return
	}

	response.Success(w, result)
}

// List implements AttendanceHandler.
func (h *attendanceHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	results, err := h.attendanceService.ListAll(r.Context(), parseAttendanceFilter(r))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, results)
}

// Delete implements AttendanceHandler.
func (h *attendanceHandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validator.IsValidUUID(id) {
		response.HandleError(w, attendance.ErrAttendanceNotFound)
		return
	}

	if err := h.attendanceService.Delete(r.Context(), id); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Attendance record deleted successfully", nil)
}

// GetStreamToken implements AttendanceHandler. Admins may pass scope=all to
// receive every user's events.
func (h *attendanceHandlerImpl) GetStreamToken(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, auth.ErrInvalidToken)
		return
	}

	subject := claims.UserID
	if r.URL.Query().Get("scope") == "all" {
		if !claims.IsAdmin() {
			response.HandleError(w, user.ErrAdminPrivilegeRequired)
			return
		}
		subject = sse.AllUsers
	}

	token, expiresIn, err := h.jwtService.GenerateSSEToken(subject)
	if err != nil {
		response.InternalServerError(w, "Failed to generate stream token")
		return
	}

	response.Success(w, StreamTokenResponse{Token: token, ExpiresIn: expiresIn})
}

// Stream handles SSE connection for live attendance events
func (h *attendanceHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	// EventSource cannot send headers, so the token travels in the query
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		response.Unauthorized(w, "Missing token")
		return
	}

	subject, err := h.jwtService.ValidateSSEToken(tokenStr)
	if err != nil {
		response.HandleError(w, auth.ErrInvalidToken)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalServerError(w, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(subject)
	defer cleanup()

	connected, _ := json.Marshal(map[string]string{"status": "connected", "user_id": subject})
	writeSSE(w, "connected", connected)
	flusher.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				slog.Error("Failed to encode stream event", "error", err, "event", event.Event)
				continue
			}
			writeSSE(w, event.Event, data)
			flusher.Flush()

		case <-keepalive.C:
			writeSSE(w, "ping", []byte(`{"timestamp":`+strconv.FormatInt(time.Now().Unix(), 10)+`}`))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, data []byte) {
	_, _ = w.Write([]byte("event: " + event + "\ndata: "))
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n\n"))
}
