package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestMultipartRequest_RoundTripsFieldsAndFiles(t *testing.T) {
	var gotField, gotFile, gotName string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		gotField = r.FormValue("chat_id")
		file, header, err := r.FormFile("photo")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotFile = string(data)
		gotName = header.Filename
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	req, err := MultipartRequest(http.MethodPost, server.URL, map[string]string{"chat_id": "@channel"}, MultipartFile{
		Field:       "photo",
		FileName:    "cat.png",
		ContentType: "image/png",
		Data:        []byte("png-bytes"),
	})
	if err != nil {
		t.Fatalf("multipart: %v", err)
	}
	client := NewClient(Config{HTTPClient: server.Client()})
	if _, err := client.Do(context.Background(), req); err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotField != "@channel" || gotFile != "png-bytes" || gotName != "cat.png" {
		t.Fatalf("unexpected multipart payload %q %q %q", gotField, gotFile, gotName)
	}
}

func TestFormAndJSONRequests(t *testing.T) {
	form := FormRequest(http.MethodPost, "https://api.example/token", url.Values{"grant_type": {"refresh_token"}})
	if form.Headers["Content-Type"] != "application/x-www-form-urlencoded" || string(form.Body) != "grant_type=refresh_token" {
		t.Fatalf("unexpected form request %#v", form)
	}

	req, err := JSONRequest(http.MethodPost, "https://api.example/tweets", map[string]string{"text": "hi"})
	if err != nil {
		t.Fatalf("json request: %v", err)
	}
	if req.Headers["Content-Type"] != "application/json" || string(req.Body) != `{"text":"hi"}` {
		t.Fatalf("unexpected json request %#v", req)
	}
	req = WithBearer(req, " token ")
	if req.Headers["Authorization"] != "Bearer token" {
		t.Fatalf("unexpected auth header %q", req.Headers["Authorization"])
	}
}

func TestClient_Download(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("mp4-bytes"))
	}))
	defer server.Close()

	client := NewClient(Config{HTTPClient: server.Client()})
	media, err := client.Download(context.Background(), server.URL+"/clips/launch.mp4")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(media.Data) != "mp4-bytes" || media.ContentType != "video/mp4" || media.FileName != "launch.mp4" {
		t.Fatalf("unexpected media %#v", media)
	}
}
