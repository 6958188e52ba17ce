package http

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"talk-to-krishna/internal/audio"
	"talk-to-krishna/internal/indexer"
	"talk-to-krishna/internal/rag"
	"talk-to-krishna/internal/service"
	"talk-to-krishna/internal/service/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestRouter(t *testing.T, mockSetup func(*mocks.MockAskService)) http.Handler {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockAskService := mocks.NewMockAskService(ctrl)
	if mockSetup != nil {
		mockSetup(mockAskService)
	}
	return NewRouter(&Deps{
		AskService:  mockAskService,
		Clips:       audio.NewStore(time.Minute),
		AudioWait:   10 * time.Millisecond,
		CorpusStats: &indexer.BuildStats{Passages: 5},
		Version:     "test",
	})
}

func TestRouter_Routes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		mockSetup  func(*mocks.MockAskService)
		wantStatus int
	}{
		{
			name:       "GET root redirects to health",
			method:     http.MethodGet,
			path:       "/",
			wantStatus: http.StatusFound,
		},
		{
			name:   "POST /api/ask",
			method: http.MethodPost,
			path:   "/api/ask",
			body:   `{"question": "q"}`,
			mockSetup: func(m *mocks.MockAskService) {
				m.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(service.AskResponse{Answer: "a", Tone: rag.ToneGeneral, Evidence: []string{}}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "POST /api/ask with bad body",
			method:     http.MethodPost,
			path:       "/api/ask",
			body:       "{",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "GET /api/ask not allowed",
			method:     http.MethodGet,
			path:       "/api/ask",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "GET /api/audio/{id} unknown",
			method:     http.MethodGet,
			path:       "/api/audio/abc",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "GET /api/health",
			method:     http.MethodGet,
			path:       "/api/health",
			wantStatus: http.StatusOK,
		},
		{
			name:       "GET /api/corpus",
			method:     http.MethodGet,
			path:       "/api/corpus",
			wantStatus: http.StatusOK,
		},
		{
			name:       "OPTIONS preflight",
			method:     http.MethodOptions,
			path:       "/api/ask",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "unknown route",
			method:     http.MethodGet,
			path:       "/api/unknown",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, tt.mockSetup)
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Router %s %s status = %v, want %v", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	router := newTestRouter(t, func(m *mocks.MockAskService) {
		m.EXPECT().Ask(gomock.Any(), gomock.Any()).DoAndReturn(func(any, any) (service.AskResponse, error) {
			panic("boom")
		})
	})
	req := httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewBufferString(`{"question": "q"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Router status = %v, want %v", w.Code, http.StatusInternalServerError)
	}
}
