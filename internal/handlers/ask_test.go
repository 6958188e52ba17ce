package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"talk-to-krishna/internal/rag"
	"talk-to-krishna/internal/service"
	"talk-to-krishna/internal/service/mocks"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAskHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name          string
		method        string
		target        string
		body          string
		mockSetup     func(*mocks.MockAskService)
		wantStatus    int
		checkResponse func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:   "successful question",
			method: http.MethodPost,
			target: "/api/ask",
			body:   `{"question": "exam ka dar", "history": [{"question": "hi", "answer": "hello"}], "user_id": "u1"}`,
			mockSetup: func(m *mocks.MockAskService) {
				m.EXPECT().Ask(gomock.Any(), service.AskRequest{
					Query:   "exam ka dar",
					History: []rag.Turn{{Question: "hi", Answer: "hello"}},
					UserID:  "u1",
				}).Return(service.AskResponse{Answer: "उत्तर", Tone: rag.ToneDistress, Evidence: []string{"2.47"}}, nil)
			},
			wantStatus: http.StatusOK,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp AskResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp.Answer != "उत्तर" || resp.Tone != "distress" || !reflect.DeepEqual(resp.Evidence, []string{"2.47"}) {
					t.Errorf("response = %+v", resp)
				}
				if resp.AudioURL != "" || resp.Debug != nil {
					t.Errorf("response should omit audio and debug: %+v", resp)
				}
			},
		},
		{
			name:   "audio handle",
			method: http.MethodPost,
			target: "/api/ask",
			body:   `{"question": "q", "include_audio": true}`,
			mockSetup: func(m *mocks.MockAskService) {
				m.EXPECT().Ask(gomock.Any(), gomock.Cond(func(x any) bool {
					return x.(service.AskRequest).IncludeAudio
				})).Return(service.AskResponse{Answer: "a", Evidence: []string{}, AudioID: "clip-1"}, nil)
			},
			wantStatus: http.StatusOK,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp AskResponse
				_ = json.NewDecoder(w.Body).Decode(&resp)
				if resp.AudioID != "clip-1" || resp.AudioURL != "/api/audio/clip-1" {
					t.Errorf("audio fields = %q %q", resp.AudioID, resp.AudioURL)
				}
			},
		},
		{
			name:   "debug via query parameter",
			method: http.MethodPost,
			target: "/api/ask?debug=1",
			body:   `{"question": "q"}`,
			mockSetup: func(m *mocks.MockAskService) {
				m.EXPECT().Ask(gomock.Any(), service.AskRequest{Query: "q", History: []rag.Turn{}, Debug: true}).
					Return(service.AskResponse{Answer: "a", Evidence: []string{}, Debug: &rag.DebugInfo{Intent: "general"}}, nil)
			},
			wantStatus: http.StatusOK,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				if !strings.Contains(w.Body.String(), `"debug":{`) {
					t.Errorf("response should include debug: %s", w.Body.String())
				}
			},
		},
		{
			name:   "retryable timeout answer",
			method: http.MethodPost,
			target: "/api/ask",
			body:   `{"question": "q"}`,
			mockSetup: func(m *mocks.MockAskService) {
				m.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(service.AskResponse{Answer: "later", Evidence: []string{}, Retryable: true}, nil)
			},
			wantStatus: http.StatusOK,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				if !strings.Contains(w.Body.String(), `"retryable":true`) {
					t.Errorf("response should be retryable: %s", w.Body.String())
				}
			},
		},
		{
			name:       "method not allowed",
			method:     http.MethodGet,
			target:     "/api/ask",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "invalid JSON body",
			method:     http.MethodPost,
			target:     "/api/ask",
			body:       "invalid json",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "validation error",
			method: http.MethodPost,
			target: "/api/ask",
			body:   `{"question": ""}`,
			mockSetup: func(m *mocks.MockAskService) {
				m.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(service.AskResponse{}, &service.ValidationError{Field: "query", Message: "cannot be empty"})
			},
			wantStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp ErrorResponse
				_ = json.NewDecoder(w.Body).Decode(&resp)
				if !strings.Contains(resp.Error, "query") {
					t.Errorf("error = %q, want the field name", resp.Error)
				}
			},
		},
		{
			name:   "external service error",
			method: http.MethodPost,
			target: "/api/ask",
			body:   `{"question": "q"}`,
			mockSetup: func(m *mocks.MockAskService) {
				m.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(service.AskResponse{}, service.ErrExternalService)
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:   "unexpected error",
			method: http.MethodPost,
			target: "/api/ask",
			body:   `{"question": "q"}`,
			mockSetup: func(m *mocks.MockAskService) {
				m.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(service.AskResponse{}, errors.New("boom"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockAskService := mocks.NewMockAskService(ctrl)
			if tt.mockSetup != nil {
				tt.mockSetup(mockAskService)
			}
			handler := NewAskHandler(mockAskService)

			req := httptest.NewRequest(tt.method, tt.target, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("ServeHTTP() status = %v, want %v (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, w)
			}
		})
	}
}

func TestAskHandler_ClientCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAskService := mocks.NewMockAskService(ctrl)
	mockAskService.EXPECT().Ask(gomock.Any(), gomock.Any()).Return(service.AskResponse{}, service.WrapError(context.Canceled, "failed to answer query"))
	handler := NewAskHandler(mockAskService)

	req := httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewBufferString(`{"question": "q"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Body.Len() != 0 {
		t.Errorf("ServeHTTP() wrote %q for a cancelled request, want nothing", w.Body.String())
	}
}
