package http

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"quizdesk/internal/auth"
	"quizdesk/internal/domain"
	"quizdesk/internal/service"
	"quizdesk/internal/storage"
)

const (
	maxAvatarSize    = 5 << 20
	avatarURLExpires = time.Hour
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users         service.UserService
	quizzes       service.QuizService
	notifications service.NotificationService
	guard         *auth.Guard
	codec         *auth.TokenCodec
	storage       storage.Service
	bucket        string
	keyPrefix     string
	logger        *logrus.Logger
}

func NewHandler(users service.UserService, quizzes service.QuizService, notifications service.NotificationService, guard *auth.Guard, codec *auth.TokenCodec, store storage.Service, bucket, keyPrefix string, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:         users,
		quizzes:       quizzes,
		notifications: notifications,
		guard:         guard,
		codec:         codec,
		storage:       store,
		bucket:        bucket,
		keyPrefix:     strings.Trim(keyPrefix, "/"),
		logger:        logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/auth/login", h.login)
		api.POST("/auth/register", h.requireRole(domain.RoleAdmin), h.register)
		api.POST("/auth/password", h.requireRole(domain.RoleAny), h.changePassword)

		api.GET("/profile", h.requireRole(domain.RoleAny), h.getProfile)
		api.PUT("/profile", h.requireRole(domain.RoleAny), h.updateProfile)
		api.POST("/profile/avatar", h.requireRole(domain.RoleAny), h.uploadAvatar)

		api.GET("/users", h.requireRole(domain.RoleAdmin), h.listUsers)
		api.POST("/users/:id/password-reset", h.requireRole(domain.RoleAdmin), h.resetPassword)

		api.GET("/classes/:name/roster", h.requireRole(domain.RoleInstructor), h.roster)

		api.POST("/quizzes", h.requireRole(domain.RoleInstructor), h.createQuiz)
		api.GET("/quizzes", h.requireRole(domain.RoleAny), h.listQuizzes)
		api.GET("/quizzes/:id", h.requireRole(domain.RoleAny), h.getQuiz)
		api.PUT("/quizzes/:id", h.requireRole(domain.RoleInstructor), h.updateQuiz)
		api.DELETE("/quizzes/:id", h.requireRole(domain.RoleInstructor), h.deleteQuiz)
		api.POST("/quizzes/:id/publish", h.requireRole(domain.RoleInstructor), h.publishQuiz)
		api.POST("/quizzes/:id/results", h.requireRole(domain.RoleStudent), h.submitResult)
		api.GET("/quizzes/:id/results", h.requireRole(domain.RoleInstructor), h.listResults)
		api.GET("/results", h.requireRole(domain.RoleStudent), h.listOwnResults)

		api.GET("/notifications", h.requireRole(domain.RoleAny), h.listNotifications)
		api.POST("/notifications/:id/read", h.requireRole(domain.RoleAny), h.markNotificationRead)

		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		case errors.Is(err, service.ErrAccountLocked):
			c.JSON(http.StatusForbidden, gin.H{"error": "account locked"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	now := time.Now()
	token, err := h.codec.Issue(user.ID, user.Role, now)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": now.Add(h.codec.TTL()).Format(time.RFC3339),
		"user":       h.userToResponse(c, *user),
	})
}

type registerRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Role      string `json:"role" binding:"required"`
	ClassName string `json:"class_name"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role, ok := domain.ParseRole(req.Role)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password, req.FullName, req.Email, role, req.ClassName)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "user already exists"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, h.userToResponse(c, *user))
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity := identityFrom(c)
	if err := h.users.ChangePassword(c.Request.Context(), identity.UserID, req.OldPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"changed": true})
}

func (h *Handler) getProfile(c *gin.Context) {
	identity := identityFrom(c)
	user, err := h.users.GetByID(c.Request.Context(), identity.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, h.userToResponse(c, *user))
}

type updateProfileRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity := identityFrom(c)
	user, err := h.users.UpdateProfile(c.Request.Context(), identity.UserID, req.FullName, req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.userToResponse(c, *user))
}

func (h *Handler) uploadAvatar(c *gin.Context) {
	if h.storage == nil || h.bucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage service not configured"})
		return
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file is required"})
		return
	}
	if file.Size > maxAvatarSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "avatar too large"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer src.Close()

	identity := identityFrom(c)
	ext := strings.ToLower(filepath.Ext(file.Filename))
	key := fmt.Sprintf("%s/%s%s", h.keyPrefix, identity.UserID, ext)

	if _, err := h.storage.UploadObject(c.Request.Context(), h.bucket, key, src, file.Header.Get("Content-Type")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.users.UpdateAvatar(c.Request.Context(), identity.UserID, key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	url, err := h.storage.GetObjectURL(c.Request.Context(), h.bucket, key, avatarURLExpires)
	if err != nil {
		h.logger.Warnf("presign avatar url: %v", err)
		url = ""
	}

	c.JSON(http.StatusOK, gin.H{"avatar_key": key, "avatar_url": url})
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.usersToResponse(c, users))
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.users.ResetPassword(c.Request.Context(), c.Param("id"), req.NewPassword); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func (h *Handler) roster(c *gin.Context) {
	users, err := h.users.Roster(c.Request.Context(), c.Param("name"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.usersToResponse(c, users))
}

type quizRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	ClassName   string `json:"class_name"`
	DueAt       string `json:"due_at"`
}

func parseDueAt(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid due_at: %w", err)
	}
	return &t, nil
}

func (h *Handler) createQuiz(c *gin.Context) {
	var req quizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dueAt, err := parseDueAt(req.DueAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity := identityFrom(c)
	quiz, err := h.quizzes.CreateQuiz(c.Request.Context(), identity.UserID, req.Title, req.Description, req.ClassName, dueAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, quizToResponse(*quiz))
}

func (h *Handler) listQuizzes(c *gin.Context) {
	identity := identityFrom(c)
	ctx := c.Request.Context()

	var (
		quizzes []domain.Quiz
		err     error
	)
	switch identity.Role {
	case domain.RoleAdmin:
		quizzes, err = h.quizzes.ListAll(ctx)
	case domain.RoleInstructor:
		quizzes, err = h.quizzes.ListForInstructor(ctx, identity.UserID)
	default:
		var user *domain.User
		user, err = h.users.GetByID(ctx, identity.UserID)
		if err == nil {
			quizzes, err = h.quizzes.ListPublishedForClass(ctx, user.ClassName)
		}
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]QuizResponse, len(quizzes))
	for i := range quizzes {
		resp[i] = quizToResponse(quizzes[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getQuiz(c *gin.Context) {
	quiz, ok := h.visibleQuiz(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, quizToResponse(*quiz))
}

// visibleQuiz loads the quiz and enforces resource-level visibility on top
// of the guard: instructors see their own quizzes, students only published
// quizzes for their class, admins everything.
func (h *Handler) visibleQuiz(c *gin.Context) (*domain.Quiz, bool) {
	quiz, err := h.quizzes.GetQuiz(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "quiz not found"})
		return nil, false
	}

	identity := identityFrom(c)
	switch identity.Role {
	case domain.RoleAdmin:
		return quiz, true
	case domain.RoleInstructor:
		if quiz.InstructorID != identity.UserID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not the quiz owner"})
			return nil, false
		}
		return quiz, true
	default:
		user, err := h.users.GetByID(c.Request.Context(), identity.UserID)
		if err != nil || !quiz.Published || quiz.ClassName != user.ClassName {
			c.JSON(http.StatusNotFound, gin.H{"error": "quiz not found"})
			return nil, false
		}
		return quiz, true
	}
}

func (h *Handler) updateQuiz(c *gin.Context) {
	var req quizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dueAt, err := parseDueAt(req.DueAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity := identityFrom(c)
	quiz, err := h.quizzes.UpdateQuiz(c.Request.Context(), identity.UserID, c.Param("id"), req.Title, req.Description, dueAt)
	if err != nil {
		h.quizError(c, err)
		return
	}
	c.JSON(http.StatusOK, quizToResponse(*quiz))
}

func (h *Handler) deleteQuiz(c *gin.Context) {
	identity := identityFrom(c)
	if err := h.quizzes.DeleteQuiz(c.Request.Context(), identity.UserID, c.Param("id")); err != nil {
		h.quizError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (h *Handler) publishQuiz(c *gin.Context) {
	identity := identityFrom(c)
	quiz, err := h.quizzes.PublishQuiz(c.Request.Context(), identity.UserID, c.Param("id"))
	if err != nil {
		h.quizError(c, err)
		return
	}
	c.JSON(http.StatusOK, quizToResponse(*quiz))
}

type submitResultRequest struct {
	Score int `json:"score"`
	Total int `json:"total" binding:"required"`
}

func (h *Handler) submitResult(c *gin.Context) {
	var req submitResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity := identityFrom(c)
	result, err := h.quizzes.SubmitResult(c.Request.Context(), c.Param("id"), identity.UserID, req.Score, req.Total)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuizNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "quiz not found"})
		case errors.Is(err, service.ErrQuizNotPublished):
			c.JSON(http.StatusConflict, gin.H{"error": "quiz not published"})
		case errors.Is(err, service.ErrResultAlreadySubmitted):
			c.JSON(http.StatusConflict, gin.H{"error": "result already submitted"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, resultToResponse(*result))
}

func (h *Handler) listResults(c *gin.Context) {
	identity := identityFrom(c)
	results, err := h.quizzes.ListResults(c.Request.Context(), identity.UserID, c.Param("id"))
	if err != nil {
		h.quizError(c, err)
		return
	}

	resp := make([]ResultResponse, len(results))
	for i := range results {
		resp[i] = resultToResponse(results[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listOwnResults(c *gin.Context) {
	identity := identityFrom(c)
	results, err := h.quizzes.ListStudentResults(c.Request.Context(), identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]ResultResponse, len(results))
	for i := range results {
		resp[i] = resultToResponse(results[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listNotifications(c *gin.Context) {
	unreadOnly, err := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flag unread"})
		return
	}

	identity := identityFrom(c)
	notifications, err := h.notifications.ListForUser(c.Request.Context(), identity.UserID, unreadOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]NotificationResponse, len(notifications))
	for i := range notifications {
		resp[i] = notificationToResponse(notifications[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) markNotificationRead(c *gin.Context) {
	identity := identityFrom(c)
	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"), identity.UserID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

func (h *Handler) quizError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrQuizNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "quiz not found"})
	case errors.Is(err, service.ErrNotQuizOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the quiz owner"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ClassName string `json:"class_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Locked    bool   `json:"locked"`
	CreatedAt string `json:"created_at"`
}

type QuizResponse struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	InstructorID string  `json:"instructor_id"`
	ClassName    string  `json:"class_name"`
	Published    bool    `json:"published"`
	DueAt        *string `json:"due_at,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type ResultResponse struct {
	ID          string `json:"id"`
	QuizID      string `json:"quiz_id"`
	StudentID   string `json:"student_id"`
	Score       int    `json:"score"`
	Total       int    `json:"total"`
	SubmittedAt string `json:"submitted_at"`
}

type NotificationResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Link      string `json:"link,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

func (h *Handler) userToResponse(c *gin.Context, user domain.User) UserResponse {
	resp := UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		FullName:  user.FullName,
		Email:     user.Email,
		Role:      user.Role.String(),
		ClassName: user.ClassName,
		Locked:    user.Locked,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	if user.AvatarKey != "" && h.storage != nil && h.bucket != "" {
		url, err := h.storage.GetObjectURL(c.Request.Context(), h.bucket, user.AvatarKey, avatarURLExpires)
		if err != nil {
			h.logger.Warnf("presign avatar url for %s: %v", user.ID, err)
		} else {
			resp.AvatarURL = url
		}
	}
	return resp
}

func (h *Handler) usersToResponse(c *gin.Context, users []domain.User) []UserResponse {
	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = h.userToResponse(c, users[i])
	}
	return resp
}

func quizToResponse(quiz domain.Quiz) QuizResponse {
	resp := QuizResponse{
		ID:           quiz.ID,
		Title:        quiz.Title,
		Description:  quiz.Description,
		InstructorID: quiz.InstructorID,
		ClassName:    quiz.ClassName,
		Published:    quiz.Published,
		CreatedAt:    quiz.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    quiz.UpdatedAt.Format(time.RFC3339),
	}
	if quiz.DueAt != nil {
		v := quiz.DueAt.Format(time.RFC3339)
		resp.DueAt = &v
	}
	return resp
}

func resultToResponse(result domain.QuizResult) ResultResponse {
	return ResultResponse{
		ID:          result.ID,
		QuizID:      result.QuizID,
		StudentID:   result.StudentID,
		Score:       result.Score,
		Total:       result.Total,
		SubmittedAt: result.SubmittedAt.Format(time.RFC3339),
	}
}

func notificationToResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}
