package domain

import "time"

// Platform — платформа клиентского приложения.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// ClientSettings — настройки доставки для клиента (member или user).
type ClientSettings struct {
	ID                            string     `json:"id"`
	OrgName                       string     `json:"orgName,omitempty"`
	Phone                         string     `json:"phone,omitempty"`
	Platform                      Platform   `json:"platform,omitempty"`
	ExternalUserID                string     `json:"externalUserId,omitempty"`
	IsPushNotificationsEnabled    bool       `json:"isPushNotificationsEnabled"`
	IsAppointmentsReminderEnabled bool       `json:"isAppointmentsReminderEnabled"`
	FirstName                     string     `json:"firstName,omitempty"`
	Avatar                        string     `json:"avatar,omitempty"`
	FirstLoggedInAt               *time.Time `json:"firstLoggedInAt,omitempty"`
}

// ClientSettingsPatch — входящий updateClientSettings.
// Отсутствующие и null поля не перезаписывают сохранённые значения.
type ClientSettingsPatch struct {
	ID                            string     `json:"id"`
	OrgName                       *string    `json:"orgName,omitempty"`
	Phone                         *string    `json:"phone,omitempty"`
	Platform                      *Platform  `json:"platform,omitempty"`
	ExternalUserID                *string    `json:"externalUserId,omitempty"`
	IsPushNotificationsEnabled    *bool      `json:"isPushNotificationsEnabled,omitempty"`
	IsAppointmentsReminderEnabled *bool      `json:"isAppointmentsReminderEnabled,omitempty"`
	FirstName                     *string    `json:"firstName,omitempty"`
	Avatar                        *string    `json:"avatar,omitempty"`
	FirstLoggedInAt               *time.Time `json:"firstLoggedInAt,omitempty"`
}

// Apply накладывает patch на настройки.
func (s *ClientSettings) Apply(p ClientSettingsPatch) {
	if s.ID == "" {
		s.ID = p.ID
	}
	if p.OrgName != nil {
		s.OrgName = *p.OrgName
	}
	if p.Phone != nil {
		s.Phone = *p.Phone
	}
	if p.Platform != nil {
		s.Platform = *p.Platform
	}
	if p.ExternalUserID != nil {
		s.ExternalUserID = *p.ExternalUserID
	}
	if p.IsPushNotificationsEnabled != nil {
		s.IsPushNotificationsEnabled = *p.IsPushNotificationsEnabled
	}
	if p.IsAppointmentsReminderEnabled != nil {
		s.IsAppointmentsReminderEnabled = *p.IsAppointmentsReminderEnabled
	}
	if p.FirstName != nil {
		s.FirstName = *p.FirstName
	}
	if p.Avatar != nil {
		s.Avatar = *p.Avatar
	}
	if p.FirstLoggedInAt != nil {
		t := *p.FirstLoggedInAt
		s.FirstLoggedInAt = &t
	}
}

// ClientRef — ссылка на клиента (payload deleteClientSettings).
type ClientRef struct {
	ID string `json:"id"`
}

// DispatchRef — ссылка на dispatch (payload deleteDispatch).
type DispatchRef struct {
	DispatchID string `json:"dispatchId"`
}
