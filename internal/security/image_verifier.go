package security

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/memoria/internal/model"
)

// ImageVerifier は思い出に添付する画像URLが公開された画像を指すかを検証する。
type ImageVerifier interface {
	VerifyImageURL(ctx context.Context, rawURL string) error
}

type imageVerifier struct {
	guard  URLPolicy
	client *http.Client
}

// NewImageVerifier はSSRF防止クライアントで画像URLを検証するImageVerifierを生成する。
func NewImageVerifier(guard URLPolicy, timeout time.Duration) *imageVerifier {
	return &imageVerifier{guard: guard, client: guard.NewSafeClient(timeout)}
}

// VerifyImageURL はHEADリクエストを送り、2xxかつContent-Typeがimage/*であることを確認する。
// HEADを受け付けないサーバーにはGETで再試行し、本文は読まずに閉じる。
// 自前のストレージのURLは接続せずに受け付ける。
func (v *imageVerifier) VerifyImageURL(ctx context.Context, rawURL string) error {
	if v.guard.Trusted(rawURL) {
		return nil
	}
	if err := v.guard.ValidateURL(rawURL); err != nil {
		return toModelError(err)
	}

	resp, err := v.do(ctx, http.MethodHead, rawURL)
	if err == nil && resp.StatusCode == http.StatusMethodNotAllowed {
		resp.Body.Close()
		resp, err = v.do(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		return toModelError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.NewInvalidImageURLError(fmt.Sprintf("server responded %d", resp.StatusCode))
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return model.NewInvalidImageURLError("not an image")
	}
	return nil
}

func (v *imageVerifier) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Accept", "image/*")
	return v.client.Do(req)
}

func toModelError(err error) error {
	if errors.Is(err, ErrBlocked) {
		return model.NewSSRFBlockedError()
	}
	if errors.Is(err, ErrInvalidURL) {
		return model.NewInvalidImageURLError(strings.TrimPrefix(err.Error(), ErrInvalidURL.Error()+": "))
	}
	return model.NewInvalidImageURLError("could not reach the image host")
}
