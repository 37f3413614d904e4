package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"notary/internal/fanout"
	"notary/internal/model"
	"notary/internal/service"
	serviceMocks "notary/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testHash = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if filename != "" {
		part, err := writer.CreateFormFile("doc", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var res errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})

	t.Run("no database", func(t *testing.T) {
		app := fiber.New()
		app.Get("/health", HealthCheck(nil))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetConfig(t *testing.T) {
	mockSvc := new(serviceMocks.MockNotaryService)
	app := fiber.New()
	app.Get("/config", GetConfig(mockSvc))

	topic := "topic-1"
	mockSvc.On("Config", mock.Anything).
		Return(&model.PublicConfig{Recipient: "0xtreasury", PriceWei: "1000", TopicID: &topic}, nil).Once()

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/config", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "0xtreasury", body["treasury"])
	assert.Equal(t, "1000", body["priceWei"])
	assert.Equal(t, "topic-1", body["hcsTopicId"])
	mockSvc.AssertExpectations(t)
}

func TestCheckExists(t *testing.T) {
	mockSvc := new(serviceMocks.MockNotaryService)
	app := fiber.New()
	app.Get("/api/check/:hash", CheckExists(mockSvc))

	t.Run("prefixed upper-case hash is normalized", func(t *testing.T) {
		mockSvc.On("Exists", mock.Anything, testHash).Return(true, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/check/0x"+strings.ToUpper(testHash), nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]bool
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, body["exists"])
		mockSvc.AssertExpectations(t)
	})

	t.Run("unknown", func(t *testing.T) {
		mockSvc.On("Exists", mock.Anything, testHash).Return(false, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/check/"+testHash, nil))

		var body map[string]bool
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body["exists"])
	})

	t.Run("malformed", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/check/xyz", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_HASH", decodeError(t, resp).Error.Code)
	})
}

func TestNotarize(t *testing.T) {
	mockSvc := new(serviceMocks.MockNotaryService)
	app := fiber.New()
	app.Post("/api/notarize", Notarize(mockSvc, 64))

	fields := map[string]string{"walletAddress": "0xPayer", "txHash": "0xRef"}

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "test.txt", []byte("hello world"), fields)

		expected := &model.NotarizeResult{Hash: testHash, ObjectID: "obj-1", TokenID: "tok-1", Summary: "- hello"}
		mockSvc.On("Notarize", mock.Anything, service.NotarizeInput{
			File:       []byte("hello world"),
			Filename:   "test.txt",
			Payer:      "0xPayer",
			PaymentRef: "0xRef",
		}).Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/notarize", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, false, result["duplicate"])
		assert.Equal(t, "obj-1", result["fileId"])
		assert.Equal(t, "tok-1", result["tokenId"])
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		body, ct := multipartBody(t, "", nil, fields)

		req := httptest.NewRequest(http.MethodPost, "/api/notarize", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, resp).Error.Code)
	})

	t.Run("too large", func(t *testing.T) {
		body, ct := multipartBody(t, "big.bin", bytes.Repeat([]byte("x"), 65), fields)

		req := httptest.NewRequest(http.MethodPost, "/api/notarize", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		assert.Equal(t, "FILE_TOO_LARGE", decodeError(t, resp).Error.Code)
	})

	t.Run("service errors", func(t *testing.T) {
		tests := []struct {
			err    error
			status int
			code   string
		}{
			{fmt.Errorf("%w: payer missing", service.ErrInvalidInput), http.StatusBadRequest, "INVALID_INPUT"},
			{service.ErrConflict, http.StatusConflict, "IN_PROGRESS"},
			{service.ErrPaymentReused, http.StatusConflict, "PAYMENT_REUSED"},
			{service.ErrPaymentInvalid, http.StatusPaymentRequired, "PAYMENT_INVALID"},
			{service.ErrInsufficientOperatorFunds, http.StatusServiceUnavailable, "OPERATOR_FUNDS_LOW"},
			{fmt.Errorf("%w: mint: %w", service.ErrServiceError, errors.New("rpc down")), http.StatusBadGateway, "UPSTREAM_ERROR"},
			{fmt.Errorf("%w: publish: %w", service.ErrServiceTimeout, errors.New("deadline")), http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"},
			{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		}

		for _, tt := range tests {
			t.Run(tt.code, func(t *testing.T) {
				mockSvc.On("Notarize", mock.Anything, mock.Anything).Return(nil, tt.err).Once()
				body, ct := multipartBody(t, "test.txt", []byte("hello"), fields)

				req := httptest.NewRequest(http.MethodPost, "/api/notarize", body)
				req.Header.Set("Content-Type", ct)
				resp, _ := app.Test(req)

				assert.Equal(t, tt.status, resp.StatusCode)
				res := decodeError(t, resp)
				assert.Equal(t, tt.code, res.Error.Code)
				assert.NotContains(t, res.Error.Message, "rpc down")
			})
		}
		mockSvc.AssertExpectations(t)
	})
}

func TestVerify(t *testing.T) {
	mockSvc := new(serviceMocks.MockNotaryService)
	app := fiber.New()
	app.Post("/api/verify", Verify(mockSvc, 0))

	t.Run("matched", func(t *testing.T) {
		body, ct := multipartBody(t, "test.txt", []byte("hello world"), nil)
		mockSvc.On("Verify", mock.Anything, []byte("hello world")).
			Return(&model.VerifyResult{Matched: true, Hash: testHash, ObjectID: "obj-1"}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/verify", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var result model.VerifyResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.True(t, result.Matched)
		assert.Equal(t, "obj-1", result.ObjectID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("unmatched is not an error", func(t *testing.T) {
		body, ct := multipartBody(t, "other.txt", []byte("other"), nil)
		mockSvc.On("Verify", mock.Anything, []byte("other")).
			Return(&model.VerifyResult{Matched: false, Hash: testHash}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/verify", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var result map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, false, result["matched"])
		assert.NotContains(t, result, "fileId")
	})
}

func TestEvents(t *testing.T) {
	feed := fanout.New()
	done := make(chan struct{})
	app := fiber.New()
	app.Get("/events", Events(feed, func() string { return "topic-7" }, done))

	go func() {
		for feed.Count() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		feed.Publish(model.Event{Type: model.EventNotarized, Source: model.SourceLocal, Hash: testHash, Timestamp: 1})
		close(done)
	}()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/events", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var frames []model.Event
	for _, chunk := range strings.Split(strings.TrimSpace(string(raw)), "\n\n") {
		data, ok := strings.CutPrefix(chunk, "data: ")
		require.True(t, ok, "unexpected frame %q", chunk)
		var ev model.Event
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		frames = append(frames, ev)
	}

	require.Len(t, frames, 2)
	assert.Equal(t, model.EventHello, frames[0].Type)
	assert.Equal(t, "topic-7", frames[0].TopicID)
	assert.Equal(t, model.EventNotarized, frames[1].Type)
	assert.Equal(t, testHash, frames[1].Hash)

	assert.Eventually(t, func() bool { return feed.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	mockSvc := new(serviceMocks.MockNotaryService)
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "routing_test_total", Help: "test"}))
	RegisterRoutes(app, Deps{Notary: mockSvc, Gatherer: reg})

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp).Error.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		raw, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(raw), "routing_test_total")
	})

	t.Run("health without database", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestBodyLimit(t *testing.T) {
	assert.Equal(t, 13<<20, BodyLimit(12))
	assert.Equal(t, fiber.DefaultBodyLimit, BodyLimit(0))
}
