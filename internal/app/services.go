package app

// Services bundles the use cases served over HTTP.
type Services struct {
	Auth     *AuthService
	Sessions *SessionService
	Posts    *PostService
	Profiles *ProfileService
}
