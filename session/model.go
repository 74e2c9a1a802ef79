package session

import "time"

// Session is the server-held record behind an opaque session id.
type Session struct {
	SessionID      string    `json:"sessionId"`
	UserID         string    `json:"userId"`
	Metadata       Metadata  `json:"metadata"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
}

// RefreshRecord backs a refresh id. It mints exactly one new pair and is
// deleted in the process.
type RefreshRecord struct {
	RefreshID string    `json:"refreshId"`
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId,omitempty"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
}

// Pair is the credential pair returned by Create and Refresh.
type Pair struct {
	SessionID string
	RefreshID string
	UserID    string
	Metadata  Metadata
}

// User is the profile carried in session metadata. It is what the user
// validator returned at login, trimmed to fields the subsystem understands.
type User struct {
	ID          string   `json:"id,omitempty"`
	Email       string   `json:"email,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// Device describes the client a session was opened from.
type Device struct {
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
	Type    string `json:"type,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Metadata is the bounded set of attributes stored with a session.
// Extra is the only free-form field; keep it small.
type Metadata struct {
	User      *User          `json:"user,omitempty"`
	Role      string         `json:"role,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	Device    *Device        `json:"device,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Merge returns m with patch applied: non-empty scalars and non-nil pointers
// replace, Extra keys are merged one level deep.
func (m Metadata) Merge(patch Metadata) Metadata {
	out := m
	if patch.User != nil {
		u := *patch.User
		out.User = &u
	}
	if patch.Role != "" {
		out.Role = patch.Role
	}
	if patch.IP != "" {
		out.IP = patch.IP
	}
	if patch.UserAgent != "" {
		out.UserAgent = patch.UserAgent
	}
	if patch.Device != nil {
		d := *patch.Device
		out.Device = &d
	}
	if len(patch.Extra) > 0 {
		extra := make(map[string]any, len(m.Extra)+len(patch.Extra))
		for k, v := range m.Extra {
			extra[k] = v
		}
		for k, v := range patch.Extra {
			extra[k] = v
		}
		out.Extra = extra
	}
	return out
}
