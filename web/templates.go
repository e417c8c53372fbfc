package web

import "html/template"

// parseTemplates builds the dashboard's small template set. The status
// dashboard is a thin operator view, not a configuration UI, so the
// templates live inline rather than as a separate asset tree.
func parseTemplates() *template.Template {
	t := template.New("")
	template.Must(t.New("login.html").Parse(loginTemplate))
	template.Must(t.New("change-password.html").Parse(changePasswordTemplate))
	template.Must(t.New("dashboard.html").Parse(dashboardTemplate))
	template.Must(t.New("breaker.html").Parse(breakerTemplate))
	template.Must(t.New("protection.html").Parse(protectionTemplate))
	return t
}

const loginTemplate = `<!doctype html>
<html><head><title>Gateway Login</title></head>
<body>
<h1>Substation Gateway</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/login">
  <label>Username <input type="text" name="username"></label>
  <label>Password <input type="password" name="password"></label>
  <button type="submit">Log in</button>
</form>
</body></html>`

const changePasswordTemplate = `<!doctype html>
<html><head><title>Change Password</title></head>
<body>
<h1>Please change the default password before continuing</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/change-password">
  <label>New password <input type="password" name="password"></label>
  <label>Confirm <input type="password" name="confirm"></label>
  <button type="submit">Update password</button>
</form>
</body></html>`

const dashboardTemplate = `<!doctype html>
<html><head><title>Gateway Status</title></head>
<body>
<h1>Substation Gateway — {{.Username}} ({{.Role}})</h1>
<h2>Breakers</h2>
<ul>
{{range .Breakers}}<li><a href="/breakers/{{.Name}}">{{.Name}}</a>: {{.State}} ({{.CurrentA}}A)</li>{{end}}
</ul>
<h2>Protection</h2>
<ul>
{{range .Protection}}<li><a href="/protection/{{.Name}}">{{.Name}}</a>: {{.Kind}}, enabled={{.Enabled}}</li>{{end}}
</ul>
<form method="post" action="/logout"><button type="submit">Log out</button></form>
</body></html>`

const breakerTemplate = `<!doctype html>
<html><head><title>Breaker {{.Name}}</title></head>
<body>
<h1>Breaker {{.Name}}</h1>
<p>State: {{.State}}</p>
<p>Current: {{.CurrentA}} A</p>
<p>Overloaded: {{.Overloaded}}</p>
<p>Locked: {{.Locked}}</p>
<p><a href="/">Back</a></p>
</body></html>`

const protectionTemplate = `<!doctype html>
<html><head><title>Protection {{.Name}}</title></head>
<body>
<h1>Protection relay {{.Name}}</h1>
<p>Kind: {{.Kind}}</p>
<p>Enabled: {{.Enabled}}</p>
<p><a href="/">Back</a></p>
</body></html>`
