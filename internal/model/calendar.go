package model

// AccessRole is the effective access role of the caller on a calendar.
type AccessRole string

const (
	RoleFreeBusyReader AccessRole = "freeBusyReader"
	RoleReader         AccessRole = "reader"
	RoleWriter         AccessRole = "writer"
	RoleOwner          AccessRole = "owner"
)

// IsWriter reports whether the role can create, update and delete events.
func (r AccessRole) IsWriter() bool {
	return r == RoleWriter || r == RoleOwner
}

// Calendar is the metadata for one entry of the user's calendar list.
type Calendar struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary,omitempty"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Timezone    string     `json:"timeZone,omitempty"`
	AccessRole  AccessRole `json:"accessRole,omitempty"`
	Selected    bool       `json:"selected,omitempty"`
	Primary     bool       `json:"primary,omitempty"`
}

// CalendarBasic is the reduced calendar metadata returned by the get API.
type CalendarBasic struct {
	ID          string `json:"id"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Timezone    string `json:"timeZone,omitempty"`
}
