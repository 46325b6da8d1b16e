package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/config"
	apperrors "github.com/spec-kit/ticket-bridge/pkg/util"
)

func testClient(baseURL string) *Client {
	return NewClient(config.GreenAPIConfig{
		InstanceID:     "1101",
		APIToken:       "token",
		APIBaseURL:     baseURL,
		MediaBaseURL:   baseURL,
		TimeoutSeconds: 5,
	}, zap.NewNop())
}

func TestSendTextPostsToInstanceEndpoint(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := testClient(srv.URL).SendText(context.Background(), "+1000", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if gotPath != "/waInstance1101/sendMessage/token" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["chatId"] != "+1000" || gotBody["message"] != "hello" {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestSendTextNon200IsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", 466)
	}))
	defer srv.Close()

	err := testClient(srv.URL).SendText(context.Background(), "+1000", "hello")
	if !apperrors.HasCode(err, "TRANSPORT_FAILURE") {
		t.Fatalf("error = %v, want TRANSPORT_FAILURE", err)
	}
}

func TestSendFileUploadsMultipartAndReturnsURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/waInstance1101/sendFileByUpload/token" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("chatId") != "+1000" || r.FormValue("caption") != "the invoice" {
			t.Errorf("form = chatId %q caption %q", r.FormValue("chatId"), r.FormValue("caption"))
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("file part: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"urlFile": "https://files.example/abc"})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "invoice.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	url, err := testClient(srv.URL).SendFile(context.Background(), "+1000", path, "invoice.pdf", "the invoice")
	if err != nil {
		t.Fatalf("SendFile: %v", err)
	}
	if url != "https://files.example/abc" {
		t.Fatalf("url = %q", url)
	}
}

func TestSendFileMissingLocalFile(t *testing.T) {
	_, err := testClient("http://unused").SendFile(context.Background(), "+1000", "/no/such/file.pdf", "file.pdf", "")
	if !apperrors.HasCode(err, "VALIDATION_FAILED") {
		t.Fatalf("error = %v, want VALIDATION_FAILED", err)
	}
}
