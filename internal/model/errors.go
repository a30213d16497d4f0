// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, memory, friend, storage, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials      = "INVALID_CREDENTIALS"
	ErrCodeEmailNotConfirmed       = "EMAIL_NOT_CONFIRMED"
	ErrCodeUserAlreadyRegistered   = "USER_ALREADY_REGISTERED"
	ErrCodeWeakPassword            = "WEAK_PASSWORD"
	ErrCodeInvalidEmail            = "INVALID_EMAIL"
	ErrCodeInvalidRefreshToken     = "INVALID_REFRESH_TOKEN"
	ErrCodeInvalidConfirmation     = "INVALID_CONFIRMATION_TOKEN"
	ErrCodeUnauthorized            = "UNAUTHORIZED"
	ErrCodeForbidden               = "FORBIDDEN"
	ErrCodeValidation              = "VALIDATION_FAILED"
	ErrCodeUserNotFound            = "USER_NOT_FOUND"
	ErrCodeProfileNotFound         = "PROFILE_NOT_FOUND"
	ErrCodeProfileExists           = "PROFILE_EXISTS"
	ErrCodeMemoryNotFound          = "MEMORY_NOT_FOUND"
	ErrCodeFriendRequestNotFound   = "FRIEND_REQUEST_NOT_FOUND"
	ErrCodeFriendRequestExists     = "FRIEND_REQUEST_EXISTS"
	ErrCodeInvalidTransition       = "INVALID_TRANSITION"
	ErrCodeInvalidImageURL         = "INVALID_IMAGE_URL"
	ErrCodeSSRFBlocked             = "SSRF_BLOCKED"
	ErrCodeFileTooLarge            = "FILE_TOO_LARGE"
	ErrCodeUnsupportedMediaType    = "UNSUPPORTED_MEDIA_TYPE"
	ErrCodeInvalidNotificationType = "INVALID_NOTIFICATION_TYPE"
)

// NewInvalidCredentialsError はメールアドレスまたはパスワードが一致しない場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid login credentials",
		Category: "auth",
		Action:   "Check your email and password and try again.",
	}
}

// NewEmailNotConfirmedError はメールアドレス未確認のユーザーがサインインしようとした場合のエラーを生成する。
func NewEmailNotConfirmedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotConfirmed,
		Message:  "Email not confirmed",
		Category: "auth",
		Action:   "Open the confirmation link we sent to your email.",
	}
}

// NewUserAlreadyRegisteredError は登録済みメールアドレスでのサインアップエラーを生成する。
func NewUserAlreadyRegisteredError() *APIError {
	return &APIError{
		Code:     ErrCodeUserAlreadyRegistered,
		Message:  "User already registered",
		Category: "auth",
		Action:   "Sign in instead.",
	}
}

// NewWeakPasswordError はパスワードが最小文字数に満たない場合のエラーを生成する。
func NewWeakPasswordError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  fmt.Sprintf("Password should be at least %d characters", minLength),
		Category: "auth",
		Action:   "Choose a longer password.",
	}
}

// NewInvalidEmailError はメールアドレスの書式エラーを生成する。
func NewInvalidEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  fmt.Sprintf("Invalid email address: %q", email),
		Category: "auth",
		Action:   "Enter a valid email address.",
	}
}

// NewInvalidRefreshTokenError はリフレッシュトークンが無効または期限切れの場合のエラーを生成する。
func NewInvalidRefreshTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRefreshToken,
		Message:  "Invalid Refresh Token",
		Category: "auth",
		Action:   "Sign in again.",
	}
}

// NewInvalidConfirmationError はメール確認トークンが無効な場合のエラーを生成する。
func NewInvalidConfirmationError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidConfirmation,
		Message:  "Email link is invalid or has expired",
		Category: "auth",
		Action:   "Sign up again to receive a new confirmation link.",
	}
}

// NewUnauthorizedError は認証が必要な操作を未認証で呼び出した場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required",
		Category: "auth",
		Action:   "Please sign in.",
	}
}

// NewForbiddenError は所有者以外による変更操作のエラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  reason,
		Category: "auth",
		Action:   "Only the owner can perform this action.",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("%s: %s", field, reason),
		Category: "validation",
		Action:   "Correct the highlighted field and try again.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Sign in again.",
	}
}

// NewProfileNotFoundError はプロフィールが見つからない場合のエラーを生成する。
func NewProfileNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("Profile not found: %s", id),
		Category: "validation",
		Action:   "Check the profile id.",
	}
}

// NewProfileExistsError はプロフィールを二重に作成しようとした場合のエラーを生成する。
func NewProfileExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileExists,
		Message:  "Profile already exists",
		Category: "validation",
		Action:   "Update the existing profile instead.",
	}
}

// NewMemoryNotFoundError は思い出が見つからない、または閲覧できない場合のエラーを生成する。
func NewMemoryNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeMemoryNotFound,
		Message:  fmt.Sprintf("Memory not found: %s", id),
		Category: "memory",
		Action:   "The memory may have been deleted or is private.",
	}
}

// NewFriendRequestNotFoundError はフレンドリクエストが見つからない場合のエラーを生成する。
func NewFriendRequestNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeFriendRequestNotFound,
		Message:  fmt.Sprintf("Friend request not found: %s", id),
		Category: "friend",
		Action:   "Refresh your friends list.",
	}
}

// NewFriendRequestExistsError は同じ組み合わせに有効なエッジが既に存在する場合のエラーを生成する。
func NewFriendRequestExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeFriendRequestExists,
		Message:  "A friend request or friendship already exists with this user",
		Category: "friend",
		Action:   "Check your pending requests.",
	}
}

// NewInvalidTransitionError はフレンドリクエストの状態遷移が許可されていない場合のエラーを生成する。
func NewInvalidTransitionError(from, to FriendRequestStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("Cannot change friend request from %s to %s", from, to),
		Category: "friend",
		Action:   "Refresh your friends list.",
	}
}

// NewInvalidImageURLError は画像URLの検証エラーを生成する。
func NewInvalidImageURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImageURL,
		Message:  fmt.Sprintf("Invalid image URL: %s", reason),
		Category: "validation",
		Action:   "Use a public http(s) link to a JPEG, PNG, WebP or GIF image.",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "The image URL points to a blocked address",
		Category: "validation",
		Action:   "Use an image hosted on a public website.",
	}
}

// NewFileTooLargeError はアップロードサイズ超過エラーを生成する。
func NewFileTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeFileTooLarge,
		Message:  fmt.Sprintf("File size must be less than %dMB", maxBytes/(1024*1024)),
		Category: "storage",
		Action:   "Choose a smaller image.",
	}
}

// NewUnsupportedMediaTypeError は許可されていないMIMEタイプのアップロードエラーを生成する。
func NewUnsupportedMediaTypeError(mime string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedMediaType,
		Message:  fmt.Sprintf("Unsupported file type: %s", mime),
		Category: "storage",
		Action:   "Upload a JPEG, PNG or WebP image.",
	}
}

// NewInvalidNotificationTypeError は未知の通知種別エラーを生成する。
func NewInvalidNotificationTypeError(t string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidNotificationType,
		Message:  fmt.Sprintf("Invalid notification type: %s", t),
		Category: "validation",
		Action:   "Use one of signin, signup, activity or setup.",
	}
}
