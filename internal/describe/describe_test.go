package describe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fpang/product-catalog/internal/catalog"
	"github.com/fpang/product-catalog/internal/retry"
	"google.golang.org/genai"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name    string
		details []map[string]any
		want    time.Duration
		wantOK  bool
	}{
		{"none", nil, 0, false},
		{"retry info", []map[string]any{
			{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
			{"@type": retryInfoType, "retryDelay": "15s"},
		}, 15 * time.Second, true},
		{"fractional", []map[string]any{{"@type": retryInfoType, "retryDelay": "1.5s"}}, 1500 * time.Millisecond, true},
		{"unparseable", []map[string]any{{"@type": retryInfoType, "retryDelay": "soon"}}, 0, false},
		{"wrong type", []map[string]any{{"@type": "x", "retryDelay": "3s"}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := retryDelay(tt.details)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("retryDelay() = %v, %v; want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestClassifyGemini_RateLimitCarriesHint(t *testing.T) {
	apiErr := genai.APIError{
		Code:    429,
		Message: "quota exceeded",
		Details: []map[string]any{{"@type": retryInfoType, "retryDelay": "7s"}},
	}
	err := classifyGemini(apiErr)

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if pe.Code != 429 {
		t.Errorf("Code = %d", pe.Code)
	}
	d, ok := retry.HintFrom(err)
	if !ok || d != 7*time.Second {
		t.Errorf("HintFrom = %v, %v; want 7s", d, ok)
	}
}

func TestClassifyGemini_NoHint(t *testing.T) {
	err := classifyGemini(genai.APIError{Code: 503, Message: "overloaded"})
	if _, ok := retry.HintFrom(err); ok {
		t.Error("503 without RetryInfo should carry no hint")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error = %q", err)
	}
}

func TestClassify_TransportErrorsBecomeProviderErrors(t *testing.T) {
	tests := []struct {
		name     string
		classify func(error) error
		provider string
		err      error
	}{
		{"gemini dial", classifyGemini, "gemini", errors.New("dial tcp: connection refused")},
		{"gemini timeout", classifyGemini, "gemini", context.DeadlineExceeded},
		{"vertex dial", classifyVertex, "vertex", errors.New("dial tcp: connection refused")},
		{"vertex timeout", classifyVertex, "vertex", context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.classify(tt.err)
			var pe *ProviderError
			if !errors.As(got, &pe) {
				t.Fatalf("expected *ProviderError, got %T", got)
			}
			if pe.Provider != tt.provider || pe.Code != 0 || pe.Message != tt.err.Error() {
				t.Errorf("got %+v", pe)
			}
			if !errors.Is(got, tt.err) {
				t.Error("underlying error not in chain")
			}
			if _, ok := pe.RetryAfter(); ok {
				t.Error("transport failure should carry no hint")
			}
		})
	}
}

func TestClassifyVertex(t *testing.T) {
	st, err := status.New(codes.ResourceExhausted, "quota").WithDetails(&errdetails.RetryInfo{
		RetryDelay: durationpb.New(3 * time.Second),
	})
	if err != nil {
		t.Fatalf("WithDetails: %v", err)
	}
	got := classifyVertex(st.Err())

	var pe *ProviderError
	if !errors.As(got, &pe) {
		t.Fatalf("expected *ProviderError, got %T", got)
	}
	if pe.Code != 429 || pe.Provider != "vertex" {
		t.Errorf("got code %d provider %q", pe.Code, pe.Provider)
	}
	if d, ok := pe.RetryAfter(); !ok || d != 3*time.Second {
		t.Errorf("RetryAfter() = %v, %v", d, ok)
	}

	unavailable := classifyVertex(status.Error(codes.Unavailable, "down"))
	if !errors.As(unavailable, &pe) || pe.Code != 503 || pe.HasHint {
		t.Errorf("unavailable classified as %+v", pe)
	}
}

func TestStatic(t *testing.T) {
	s := Static{Fields: catalog.ProductFields{ProductName: "Mug"}}
	f, err := s.Describe(context.Background(), nil, "image/jpeg")
	if err != nil || f.ProductName != "Mug" {
		t.Errorf("Describe() = %+v, %v", f, err)
	}

	calls := 0
	s = Static{Fn: func(context.Context, []byte, string) (catalog.ProductFields, error) {
		calls++
		return catalog.ProductFields{}, errors.New("boom")
	}}
	if _, err := s.Describe(context.Background(), nil, "image/jpeg"); err == nil || calls != 1 {
		t.Errorf("Fn not used: err=%v calls=%d", err, calls)
	}
}

func newTestGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return NewGemini(client, "test-model", nil)
}

func TestGemini_Describe(t *testing.T) {
	reply := `{"productName":"Ceramic Mug","description":"A mug.","features":["Dishwasher safe"],"dimensions":"10cm","materials":"Ceramic","categories":["Kitchen"]}`

	var gotBody map[string]any
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "test-model:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": reply}},
				},
			}},
		})
	})

	fields, err := g.Describe(context.Background(), []byte("not really an image"), "image/jpeg")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if fields.ProductName != "Ceramic Mug" || fields.Materials != "Ceramic" {
		t.Errorf("fields = %+v", fields)
	}
	if _, ok := gotBody["systemInstruction"]; !ok {
		t.Error("request should carry a system instruction")
	}
}

func TestGemini_DescribeAPIError(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"bad image","status":"INVALID_ARGUMENT"}}`)
	})

	_, err := g.Describe(context.Background(), []byte("x"), "image/jpeg")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError, got %T: %v", err, err)
	}
	if pe.Code != 400 {
		t.Errorf("Code = %d", pe.Code)
	}
}
