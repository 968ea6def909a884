package model

// Session is the client-side authenticated state: the identity plus the
// bearer token pair. User is nil when the stored profile could not be read.
type Session struct {
	User         *User  `json:"user,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (s *Session) IsAuthenticated() bool {
	return s != nil && s.AccessToken != ""
}
