package handler

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-schedule-api/internal/middleware"
	"github.com/noah-isme/campus-schedule-api/internal/models"
)

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestContext(method, target string, body interface{}, user *models.User) (*httptest.ResponseRecorder, *gin.Context) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	c.Request = httptest.NewRequest(method, target, &buf)
	c.Request.Header.Set("Content-Type", "application/json")
	if user != nil {
		c.Set(middleware.ContextUserKey, user)
	}
	return rec, c
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

var (
	adminUser   = &models.User{ID: "a1", Username: "root", Role: models.RoleAdmin}
	teacherUser = &models.User{ID: "t1", Username: "msmith", Role: models.RoleTeacher, Firstname: "Mary", Lastname: "Smith"}
	studentUser = &models.User{ID: "s1", Username: "jdoe", Role: models.RoleStudent, Firstname: "Jane", Lastname: "Doe"}
)
