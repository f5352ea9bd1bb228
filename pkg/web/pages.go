package web

import "html/template"

// Error page copy keyed by the msg query parameter. Unknown values fall
// back to the server_error text.
var errorMessages = map[string]string{
	"expired":        "Your verification link has expired. Run /verify on the server to get a new one.",
	"wrong_account":  "You linked a different Discord account than the one that requested verification. Run /verify again and sign in to Discord with the right account.",
	"already_linked": "This campus account is already linked to a different Discord account. Contact a server administrator if you need it unlinked.",
	"not_linked":     "The Discord link step was cancelled or failed. Run /verify on the server to try again.",
	"server_error":   "Something went wrong on our side. Please try again in a few minutes.",
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; background: #1e2124; color: #eee;
       display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
.card { background: #282b30; border-radius: 12px; padding: 2.5rem 3rem; max-width: 28rem; text-align: center; }
h1 { font-size: 1.4rem; margin: 0 0 1rem; }
p { color: #bbb; line-height: 1.5; margin: 0; }
.ok { color: #2ecc71; }
.err { color: #e74c3c; }
</style>
</head>
<body>
<div class="card">
<h1 class="{{.Class}}">{{.Title}}</h1>
<p>{{.Message}}</p>
</div>
</body>
</html>
`))

type pageData struct {
	Title   string
	Message string
	Class   string
}
