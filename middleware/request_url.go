package middleware

import (
	"net/http"

	serverAuth "github.com/MrEthical07/serverAuth"
)

// RequestURLHeader carries the absolute URL of the inbound request to the host handler.
const RequestURLHeader = "Request-Url"

// RequestURL records the full request URL on the response and continues.
func RequestURL(r *http.Request, res *serverAuth.Response) Outcome {
	res.Header.Set(RequestURLHeader, serverAuth.RequestURL(r).String())
	return Continue()
}
