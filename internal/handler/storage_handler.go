package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/hitoshi/memoria/internal/middleware"
	"github.com/hitoshi/memoria/internal/model"
)

// multipartOverhead はmultipartの境界やヘッダー分としてファイル上限に上乗せするバイト数。
const multipartOverhead = 64 * 1024

// AvatarStoreInterface はアバターアップロードハンドラーが必要とするインターフェース。
type AvatarStoreInterface interface {
	MaxBytes() int64
	UploadAvatar(ctx context.Context, userID, filename, contentType string, size int64, body io.Reader) (string, error)
}

// StorageHandler はオブジェクトストレージのHTTPハンドラー。
type StorageHandler struct {
	store AvatarStoreInterface
}

// NewStorageHandler はStorageHandlerを生成する。
func NewStorageHandler(store AvatarStoreInterface) *StorageHandler {
	return &StorageHandler{store: store}
}

type uploadResponse struct {
	URL string `json:"url"`
}

// UploadAvatar はmultipartの"file"フィールドを呼び出し元のアバター画像として保存する。
// プロフィールのavatar_urlは更新しない。
// PUT /storage/v1/avatar
func (h *StorageHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := viewerID(w, r)
	if !ok {
		return
	}

	maxBytes := h.store.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, model.NewFileTooLargeError(maxBytes))
			return
		}
		middleware.WriteError(w, model.NewValidationError("file", "multipart form expected"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, model.NewValidationError("file", "is required"))
		return
	}
	defer file.Close()
	if header.Size > maxBytes {
		middleware.WriteError(w, model.NewFileTooLargeError(maxBytes))
		return
	}

	// Content-Typeはクライアント申告ではなく先頭バイトから判定する
	sniff := make([]byte, 512)
	n, err := io.ReadFull(file, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		middleware.WriteInternalServerError(w)
		return
	}
	contentType := http.DetectContentType(sniff[:n])
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	url, err := h.store.UploadAvatar(r.Context(), userID, header.Filename, contentType, header.Size, file)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{URL: url})
}
