// Package client is a small typed client for the product API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"MenuStore/internal/catalog"
)

var (
	ErrNotFound    = errors.New("product not found")
	ErrForbidden   = errors.New("forbidden")
	ErrBadRequest  = errors.New("bad request")
	ErrBadStatus   = errors.New("bad status")
	ErrUnavailable = errors.New("catalog unavailable")
)

type Client struct {
	BaseURL string
	token   string
	Client  *http.Client
}

func New(baseURL, token string) *Client {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		BaseURL: baseURL,
		token:   token,
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Image is an optional file sent with Create or Update.
type Image struct {
	Filename string
	Data     []byte
}

func (c *Client) List(ctx context.Context) ([]catalog.Product, error) {
	var out []catalog.Product
	err := c.do(ctx, http.MethodGet, "/products", nil, "", http.StatusOK, &out)
	return out, err
}

func (c *Client) Get(ctx context.Context, id string) (catalog.Product, error) {
	var out catalog.Product
	err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, "", http.StatusOK, &out)
	return out, err
}

func (c *Client) Create(ctx context.Context, in catalog.Input, img *Image) (catalog.Product, error) {
	body, ct, err := encodeInput(in, img)
	if err != nil {
		return catalog.Product{}, err
	}
	var out catalog.Product
	err = c.do(ctx, http.MethodPost, "/products", body, ct, http.StatusCreated, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id string, in catalog.Input, img *Image) (catalog.Product, error) {
	body, ct, err := encodeInput(in, img)
	if err != nil {
		return catalog.Product{}, err
	}
	var out catalog.Product
	err = c.do(ctx, http.MethodPut, "/products/"+url.PathEscape(id), body, ct, http.StatusOK, &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, id string) (catalog.Product, error) {
	var out struct {
		Product catalog.Product `json:"product"`
	}
	err := c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil, "", http.StatusOK, &out)
	return out.Product, err
}

// Token exchanges the shared secret for an editor token.
func (c *Client) Token(ctx context.Context, password string) (string, error) {
	b, err := json.Marshal(map[string]string{"password": password})
	if err != nil {
		return "", err
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	err = c.do(ctx, http.MethodPost, "/auth/token", bytes.NewReader(b), "application/json", http.StatusOK, &out)
	return out.AccessToken, err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		_, _ = io.Copy(io.Discard, resp.Body)
		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusForbidden, http.StatusUnauthorized:
			return ErrForbidden
		case http.StatusBadRequest:
			return ErrBadRequest
		default:
			return fmt.Errorf("%w: status=%d", ErrBadStatus, resp.StatusCode)
		}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func encodeInput(in catalog.Input, img *Image) (io.Reader, string, error) {
	if img == nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(b), "application/json", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"name", in.Name},
		{"price", in.Price.String()},
		{"description", in.Description},
		{"category", in.Category},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	fw, err := mw.CreateFormFile("image", img.Filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
