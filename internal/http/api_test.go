package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizdesk/internal/auth"
	"quizdesk/internal/domain"
	"quizdesk/internal/repository/sqlite"
	"quizdesk/internal/service"
)

type apiFixture struct {
	router *gin.Engine
	codec  *auth.TokenCodec
	users  service.UserService
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	userRepo := sqlite.NewUserRepository(db)
	quizRepo := sqlite.NewQuizRepository(db)
	resultRepo := sqlite.NewResultRepository(db)
	notificationRepo := sqlite.NewNotificationRepository(db)
	for _, init := range []interface{ Init(context.Context) error }{userRepo, quizRepo, resultRepo, notificationRepo} {
		require.NoError(t, init.Init(ctx))
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	codec := auth.NewTokenCodec("test-secret", time.Hour)
	guard := auth.NewGuard(codec)
	notifications := service.NewNotificationService(notificationRepo)
	users := service.NewUserService(userRepo, auth.NewPasswordHasher(), notifications, 5, logger)
	quizzes := service.NewQuizService(quizRepo, resultRepo, userRepo, notifications, logger)

	router := gin.New()
	handler := NewHandler(users, quizzes, notifications, guard, codec, nil, "", "avatars", logger)
	handler.RegisterRoutes(router)

	return apiFixture{router: router, codec: codec, users: users}
}

func (f apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f apiFixture) registerAndLogin(t *testing.T, username string, role domain.Role, className string) string {
	t.Helper()
	_, err := f.users.Register(context.Background(), username, "password-123", "", "", role, className)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": username,
		"password": "password-123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newAPIFixture(t)
	_, err := f.users.Register(context.Background(), "jdoe", "password-123", "", "", domain.RoleStudent, "Math 101")
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "jdoe",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMissingTokenIs401(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExpiredTokenIs401(t *testing.T) {
	f := newAPIFixture(t)

	token, err := f.codec.Issue("u1", domain.RoleStudent, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWrongRoleIs403(t *testing.T) {
	f := newAPIFixture(t)
	studentToken := f.registerAndLogin(t, "student1", domain.RoleStudent, "Math 101")

	rec := f.do(t, http.MethodGet, "/api/users", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminCanListUsers(t *testing.T) {
	f := newAPIFixture(t)
	adminToken := f.registerAndLogin(t, "admin1", domain.RoleAdmin, "")
	_ = f.registerAndLogin(t, "student1", domain.RoleStudent, "Math 101")

	rec := f.do(t, http.MethodGet, "/api/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var users []UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 2)
}

func TestAdminListsAllQuizzes(t *testing.T) {
	f := newAPIFixture(t)
	adminToken := f.registerAndLogin(t, "admin1", domain.RoleAdmin, "")
	instructorToken := f.registerAndLogin(t, "teacher1", domain.RoleInstructor, "Math 101")

	rec := f.do(t, http.MethodPost, "/api/quizzes", instructorToken, gin.H{
		"title":      "Algebra Midterm",
		"class_name": "Math 101",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// admins see every quiz, drafts included
	rec = f.do(t, http.MethodGet, "/api/quizzes", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var quizzes []QuizResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quizzes))
	require.Len(t, quizzes, 1)
	assert.Equal(t, "Algebra Midterm", quizzes[0].Title)
	assert.False(t, quizzes[0].Published)
}

func TestQuizLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	instructorToken := f.registerAndLogin(t, "teacher1", domain.RoleInstructor, "Math 101")
	studentToken := f.registerAndLogin(t, "student1", domain.RoleStudent, "Math 101")

	rec := f.do(t, http.MethodPost, "/api/quizzes", instructorToken, gin.H{
		"title":      "Algebra Midterm",
		"class_name": "Math 101",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var quiz QuizResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quiz))

	// unpublished quiz is invisible to the student
	rec = f.do(t, http.MethodGet, "/api/quizzes/"+quiz.ID, studentToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// students cannot publish
	rec = f.do(t, http.MethodPost, "/api/quizzes/"+quiz.ID+"/publish", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/quizzes/"+quiz.ID+"/publish", instructorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/quizzes/"+quiz.ID, studentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/quizzes/"+quiz.ID+"/results", studentToken, gin.H{
		"score": 17,
		"total": 20,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// the publish and result fan-outs landed in the student's inbox
	rec = f.do(t, http.MethodGet, "/api/notifications?unread=true", studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var notifications []NotificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notifications))
	require.Len(t, notifications, 2)
	for _, n := range notifications {
		assert.NotEmpty(t, n.ID)
		assert.NotEmpty(t, n.Type)
		assert.NotEmpty(t, n.Title)
		assert.NotEmpty(t, n.CreatedAt)
		assert.False(t, n.Read)
	}

	rec = f.do(t, http.MethodPost, "/api/notifications/"+notifications[0].ID+"/read", studentToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/notifications?unread=true", studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	notifications = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notifications))
	assert.Len(t, notifications, 1)
}

func TestChangePasswordOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	token := f.registerAndLogin(t, "jdoe", domain.RoleInstructor, "")

	rec := f.do(t, http.MethodPost, "/api/auth/password", token, gin.H{
		"old_password": "wrong-old",
		"new_password": "brand-new-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/password", token, gin.H{
		"old_password": "password-123",
		"new_password": "brand-new-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "jdoe",
		"password": "brand-new-pass",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRosterRequiresInstructor(t *testing.T) {
	f := newAPIFixture(t)
	instructorToken := f.registerAndLogin(t, "teacher1", domain.RoleInstructor, "Math 101")
	studentToken := f.registerAndLogin(t, "student1", domain.RoleStudent, "Math 101")

	rec := f.do(t, http.MethodGet, "/api/classes/Math%20101/roster", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/classes/Math%20101/roster", instructorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var roster []UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roster))
	require.Len(t, roster, 1)
	assert.Equal(t, "student1", roster[0].Username)
}
