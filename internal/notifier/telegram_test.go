package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/dmattli/go-exopticon/internal/alert"
)

func TestTelegramWorkerSendPostsChatIDAndText(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		r.ParseForm()
		gotForm = r.Form
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	worker := &telegramWorker{botToken: "test-token", client: srv.Client()}
	worker.send(context.Background(), srv.URL, alert.Notification{ContactGroup: "123", Message: "hello"})

	if gotForm.Get("chat_id") != "123" || gotForm.Get("text") != "hello" {
		t.Fatalf("unexpected form values: %+v", gotForm)
	}
	_ = gotPath
}

func TestTelegramWorkerSendReturnsErrorOnNonSuccessStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	worker := &telegramWorker{botToken: "test-token", client: srv.Client()}
	err := worker.send(context.Background(), srv.URL, alert.Notification{ContactGroup: "123", Message: "hello"})
	if err == nil {
		t.Fatalf("expected an error on a non-2xx response")
	}
}
