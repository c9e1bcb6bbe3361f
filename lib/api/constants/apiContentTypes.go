package constants

const (
	ContentTypeJSON       = "application/json"
	ContentTypeHealthJSON = "application/health+json"
	ContentTypeTextPlain  = "text/plain; charset=utf-8"
)
