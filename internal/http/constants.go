package http

const (
	HTTPErrorMethodNotAllowedText = "method not allowed"
	HTTPErrorInvalidJSONText      = "invalid JSON"
	HTTPErrorUnauthorizedText     = "unauthorized"
	HTTPErrorForbiddenText        = "forbidden"
	HTTPErrorForbiddenOriginText  = "forbidden origin"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	maxBodyBytes        = 16 << 10
)
