package errors

// Error is the JSON body of every failed HTTP request.
type Error struct {
	Message string `json:"message" example:"Not found"`
	Error   int    `json:"error" example:"404"`
}
