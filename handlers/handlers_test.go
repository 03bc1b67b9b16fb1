package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-staking-system/blob"
	"task-staking-system/logger"
	"task-staking-system/metrics"
	"task-staking-system/services"
	"task-staking-system/storage"
)

const owner = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

type testServer struct {
	app   *fiber.App
	blobs *blob.LocalStore
}

func newTestServer(t *testing.T, operatorToken string) *testServer {
	t.Helper()
	log := logger.Discard()
	store := storage.NewMemoryStore()
	blobs, err := blob.NewLocalStore(t.TempDir(), blob.DefaultMaxBytes)
	require.NoError(t, err)
	m := metrics.New()

	users := services.NewUserService(store, log)
	tasks := services.NewTaskService(services.TaskDeps{Store: store, Blobs: blobs, Metrics: m, Log: log})

	app := fiber.New(fiber.Config{BodyLimit: 11 << 20})
	SetupRoutes(app, NewHandler(users, tasks, blobs, log), m, operatorToken)
	return &testServer{app: app, blobs: blobs}
}

func (s *testServer) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp.StatusCode, body
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, path string, fields map[string]string, file *multipartFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="proofFile"; filename="`+file.name+`"`)
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest("PATCH", path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

type multipartFile struct {
	name        string
	contentType string
	body        []byte
}

func TestUserRoutes(t *testing.T) {
	s := newTestServer(t, "")

	status, body := s.do(t, jsonRequest("POST", "/create-user", `{"userAddress":"`+owner+`"}`))
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, owner, body["userAddress"])
	assert.Equal(t, "0", body["total_spent"])
	assert.Equal(t, []any{}, body["badges"])

	status, body = s.do(t, jsonRequest("POST", "/create-user", `{"userAddress":"`+owner+`"}`))
	assert.Equal(t, fiber.StatusConflict, status)
	assert.NotEmpty(t, body["error"])

	status, _ = s.do(t, jsonRequest("POST", "/create-user", `{}`))
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = s.do(t, httptest.NewRequest("GET", "/user/"+owner, nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(0), body["streak"])

	status, body = s.do(t, httptest.NewRequest("GET", "/user/0xnobody", nil))
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.NotEmpty(t, body["error"])
}

func TestCreateTaskRoute(t *testing.T) {
	s := newTestServer(t, "")

	status, body := s.do(t, jsonRequest("POST", "/create-task",
		`{"id":1,"title":"Complete project","description":"Finish it","deadline":"2030-01-01T00:00:00Z","staked_amount":"0.5","userAddress":"`+owner+`"}`))
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "Task created successfully", body["message"])
	task := body["task"].(map[string]any)
	assert.Equal(t, float64(1), task["id"])
	assert.Equal(t, "0.5", task["staked_amount"])
	assert.Equal(t, false, task["verified"])
	assert.Nil(t, task["proof"])
	assert.NotContains(t, body, "txHash")

	status, _ = s.do(t, jsonRequest("POST", "/create-task", `{"id":1,"title":"again","staked_amount":1,"userAddress":"`+owner+`"}`))
	assert.Equal(t, fiber.StatusConflict, status)

	status, body = s.do(t, jsonRequest("POST", "/create-task", `{"id":2,"staked_amount":1,"userAddress":"`+owner+`"}`))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body["error"], "title")

	status, _ = s.do(t, jsonRequest("POST", "/create-task", `{"id":3,"title":"t","staked_amount":"-1","userAddress":"`+owner+`"}`))
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, jsonRequest("POST", "/create-task", `{not json`))
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestSubmitProofRoute(t *testing.T) {
	s := newTestServer(t, "")
	status, _ := s.do(t, jsonRequest("POST", "/create-task", `{"id":5,"title":"t","staked_amount":"1","userAddress":"`+owner+`"}`))
	require.Equal(t, fiber.StatusCreated, status)

	status, body := s.do(t, multipartRequest(t, "/submit-proof/5",
		map[string]string{"userAddress": owner, "urlProof": "https://example.com/pr/1"},
		&multipartFile{name: "shot.png", contentType: "image/png", body: []byte("\x89PNG fake")}))
	require.Equal(t, fiber.StatusOK, status, body)
	proof := body["proof"].(map[string]any)
	assert.Equal(t, "file", proof["type"])
	assert.Equal(t, "shot.png", proof["originalName"])
	assert.Equal(t, "image/png", proof["mimetype"])

	// the stored file is served back
	filename := proof["filename"].(string)
	resp, err := s.app.Test(httptest.NewRequest("GET", "/uploads/"+filename, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "\x89PNG fake", string(data))

	status, _ = s.do(t, jsonRequest("PATCH", "/submit-proof/5", `{"userAddress":"0xsomeoneelse","textProof":"done"}`))
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.do(t, jsonRequest("PATCH", "/submit-proof/404", `{"userAddress":"`+owner+`","textProof":"done"}`))
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(t, jsonRequest("PATCH", "/submit-proof/5", `{"userAddress":"`+owner+`"}`))
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, jsonRequest("PATCH", "/submit-proof/abc", `{"userAddress":"`+owner+`","textProof":"done"}`))
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, multipartRequest(t, "/submit-proof/5",
		map[string]string{"userAddress": owner},
		&multipartFile{name: "run.sh", contentType: "application/x-sh", body: []byte("#!/bin/sh")}))
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestSubmitProofURLEncoded(t *testing.T) {
	s := newTestServer(t, "")
	status, _ := s.do(t, jsonRequest("POST", "/create-task", `{"id":6,"title":"t","staked_amount":"1","userAddress":"`+owner+`"}`))
	require.Equal(t, fiber.StatusCreated, status)

	req := httptest.NewRequest("PATCH", "/submit-proof/6", strings.NewReader("userAddress="+owner+"&textProof=all+done"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	status, body := s.do(t, req)
	require.Equal(t, fiber.StatusOK, status)
	proof := body["proof"].(map[string]any)
	assert.Equal(t, "text", proof["type"])
	assert.Equal(t, "all done", proof["content"])
}

func TestVerifyTaskRoute(t *testing.T) {
	s := newTestServer(t, "op-token")
	status, _ := s.do(t, jsonRequest("POST", "/create-task", `{"id":8,"title":"t","staked_amount":"1","userAddress":"`+owner+`"}`))
	require.Equal(t, fiber.StatusCreated, status)

	status, _ = s.do(t, jsonRequest("PATCH", "/verify-task/8", `{"verified":true}`))
	assert.Equal(t, fiber.StatusUnauthorized, status)

	authed := func(body string, id string) *http.Request {
		req := jsonRequest("PATCH", "/verify-task/"+id, body)
		req.Header.Set("Authorization", "Bearer op-token")
		return req
	}

	status, body := s.do(t, authed(`{"verified":true}`, "8"))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["task"].(map[string]any)["verified"])

	status, _ = s.do(t, authed(`{"verified":"true"}`, "8"))
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, authed(`{}`, "8"))
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.do(t, authed(`{"verified":false}`, "999"))
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestServeUploadRejectsTraversal(t *testing.T) {
	s := newTestServer(t, "")

	for _, path := range []string{
		"/uploads/..",
		"/uploads/..%2F..%2Fetc%2Fpasswd",
		"/uploads/%2e%2e%2fsecret",
		"/uploads/a%5Cb",
	} {
		status, body := s.do(t, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, fiber.StatusBadRequest, status, path)
		assert.NotEmpty(t, body["error"], path)
	}

	status, _ := s.do(t, httptest.NewRequest("GET", "/uploads/missing.png", nil))
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestEndToEnd(t *testing.T) {
	s := newTestServer(t, "")

	steps := []struct {
		req  *http.Request
		want int
	}{
		{jsonRequest("POST", "/create-user", `{"userAddress":"`+owner+`"}`), fiber.StatusCreated},
		{jsonRequest("POST", "/create-task", `{"id":1,"title":"t","staked_amount":"0.5","userAddress":"`+owner+`"}`), fiber.StatusCreated},
		{jsonRequest("PATCH", "/submit-proof/1", `{"userAddress":"`+owner+`","textProof":"done"}`), fiber.StatusOK},
		{jsonRequest("PATCH", "/verify-task/1", `{"verified":true}`), fiber.StatusOK},
	}
	for _, step := range steps {
		status, body := s.do(t, step.req)
		require.Equal(t, step.want, status, body)
	}

	resp, err := s.app.Test(httptest.NewRequest("GET", "/tasks/"+owner, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var tasks []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, true, tasks[0]["verified"])

	var proof map[string]any
	require.NoError(t, json.Unmarshal([]byte(tasks[0]["proof"].(string)), &proof))
	assert.Equal(t, "text", proof["type"])
	assert.Equal(t, "done", proof["content"])

	status, user := s.do(t, httptest.NewRequest("GET", "/user/"+owner, nil))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), user["streak"])
	assert.Equal(t, "0.5", user["total_spent"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, "")

	status, body := s.do(t, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	resp, err := s.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
