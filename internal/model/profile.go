package model

import (
	"strings"
	"time"
)

// Profile はユーザーの公開プロフィールを表す。
// IDは認証ユーザーのIDと同一で、所有者本人だけが更新できる。
type Profile struct {
	ID                 string
	FullName           string
	Email              string
	Bio                string
	AvatarURL          string
	Location           string
	EmailNotifications bool
	IsPrivate          bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsComplete はプロフィールが完成しているかどうかを返す。
// full_nameとbioの両方が空でない場合に完成とみなす。
func (p *Profile) IsComplete() bool {
	if p == nil {
		return false
	}
	return strings.TrimSpace(p.FullName) != "" && strings.TrimSpace(p.Bio) != ""
}

// ProfilePatch はプロフィールの部分更新を表す。nilのフィールドは変更しない。
type ProfilePatch struct {
	FullName           *string
	Email              *string
	Bio                *string
	AvatarURL          *string
	Location           *string
	EmailNotifications *bool
	IsPrivate          *bool
}

// IsEmpty は更新対象のフィールドが1つもないかどうかを返す。
func (p ProfilePatch) IsEmpty() bool {
	return p.FullName == nil && p.Email == nil && p.Bio == nil && p.AvatarURL == nil &&
		p.Location == nil && p.EmailNotifications == nil && p.IsPrivate == nil
}

// Apply はパッチの内容をプロフィールに反映する。
func (p ProfilePatch) Apply(profile *Profile) {
	if p.FullName != nil {
		profile.FullName = *p.FullName
	}
	if p.Email != nil {
		profile.Email = *p.Email
	}
	if p.Bio != nil {
		profile.Bio = *p.Bio
	}
	if p.AvatarURL != nil {
		profile.AvatarURL = *p.AvatarURL
	}
	if p.Location != nil {
		profile.Location = *p.Location
	}
	if p.EmailNotifications != nil {
		profile.EmailNotifications = *p.EmailNotifications
	}
	if p.IsPrivate != nil {
		profile.IsPrivate = *p.IsPrivate
	}
}
