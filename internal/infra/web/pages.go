package web

import (
	"fmt"
	"net/http"
)

// Redirect targets for the provider's success_url / fail_url. Static pages:
// the authoritative state change always comes through the webhook, never
// through the user's browser.

func (s *Server) handleSuccessPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Payment Successful</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }
        .success { color: #4CAF50; }
    </style>
</head>
<body>
    <h1 class="success">Payment Successful!</h1>
    <p>Your payment has been received. Your subscription will be activated within a minute.</p>
    <p><a href="%s">Return to Bot</a></p>
</body>
</html>
`, s.botLink)
}

func (s *Server) handleFailPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Payment Failed</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }
        .error { color: #F44336; }
    </style>
</head>
<body>
    <h1 class="error">Payment Failed</h1>
    <p>Your payment could not be processed. No money was taken. Please try again.</p>
    <p><a href="%s">Return to Bot</a></p>
</body>
</html>
`, s.botLink)
}
