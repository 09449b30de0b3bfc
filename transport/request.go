package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"

	"github.com/goliatone/go-social/core"
)

const defaultDownloadLimit int64 = 512 << 20

func NewRequest(method string, endpoint string) core.TransportRequest {
	return core.TransportRequest{
		Method:  strings.ToUpper(strings.TrimSpace(method)),
		URL:     endpoint,
		Headers: map[string]string{},
		Query:   map[string]string{},
	}
}

// JSONRequest encodes payload as the request body.
func JSONRequest(method string, endpoint string, payload any) (core.TransportRequest, error) {
	req := NewRequest(method, endpoint)
	req.Headers["Accept"] = "application/json"
	if payload == nil {
		return req, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return core.TransportRequest{}, fmt.Errorf("transport: encode json body: %w", err)
	}
	req.Body = data
	req.Headers["Content-Type"] = "application/json"
	return req, nil
}

func FormRequest(method string, endpoint string, values url.Values) core.TransportRequest {
	req := NewRequest(method, endpoint)
	req.Headers["Accept"] = "application/json"
	req.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	req.Body = []byte(values.Encode())
	return req
}

// MultipartFile is one file part of a multipart body.
type MultipartFile struct {
	Field       string
	FileName    string
	ContentType string
	Data        []byte
}

func MultipartRequest(method string, endpoint string, fields map[string]string, files ...MultipartFile) (core.TransportRequest, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return core.TransportRequest{}, fmt.Errorf("transport: write field %s: %w", key, err)
		}
	}
	for _, file := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, fileNameOrDefault(file.FileName)))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			return core.TransportRequest{}, fmt.Errorf("transport: create part %s: %w", file.Field, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return core.TransportRequest{}, fmt.Errorf("transport: write part %s: %w", file.Field, err)
		}
	}
	if err := writer.Close(); err != nil {
		return core.TransportRequest{}, fmt.Errorf("transport: close multipart body: %w", err)
	}
	req := NewRequest(method, endpoint)
	req.Headers["Accept"] = "application/json"
	req.Headers["Content-Type"] = writer.FormDataContentType()
	req.Body = buf.Bytes()
	return req, nil
}

// RawRequest sends data as is, typically for binary upload endpoints.
func RawRequest(method string, endpoint string, contentType string, data []byte) core.TransportRequest {
	req := NewRequest(method, endpoint)
	if contentType != "" {
		req.Headers["Content-Type"] = contentType
	}
	req.Body = data
	return req
}

func WithBearer(req core.TransportRequest, token string) core.TransportRequest {
	return WithHeader(req, "Authorization", "Bearer "+strings.TrimSpace(token))
}

func WithHeader(req core.TransportRequest, key string, value string) core.TransportRequest {
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	req.Headers[key] = value
	return req
}

func WithQuery(req core.TransportRequest, key string, value string) core.TransportRequest {
	if req.Query == nil {
		req.Query = map[string]string{}
	}
	req.Query[key] = value
	return req
}

func DecodeJSON(res core.TransportResponse, out any) error {
	if err := json.Unmarshal(res.Body, out); err != nil {
		return fmt.Errorf("transport: decode json body: %w", err)
	}
	return nil
}

// Media is a downloaded asset ready to be re-uploaded to a platform.
type Media struct {
	Data        []byte
	ContentType string
	FileName    string
}

// Download fetches a public asset. Platforms that cannot pull from a URL
// need the bytes uploaded directly.
func (c *Client) Download(ctx context.Context, rawURL string) (Media, error) {
	req := NewRequest(http.MethodGet, rawURL)
	req.MaxResponseBodyBytes = defaultDownloadLimit
	res, err := c.Do(ctx, req)
	if err != nil {
		return Media{}, err
	}
	contentType := headerValue(res.Headers, "Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(res.Body)
	}
	return Media{
		Data:        res.Body,
		ContentType: contentType,
		FileName:    fileNameFromURL(rawURL),
	}, nil
}

func headerValue(headers map[string]string, key string) string {
	if value, ok := headers[key]; ok {
		return value
	}
	for name, value := range headers {
		if strings.EqualFold(name, key) {
			return value
		}
	}
	return ""
}

func fileNameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func fileNameOrDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return "upload"
	}
	return name
}
