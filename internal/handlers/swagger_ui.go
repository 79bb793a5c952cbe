package handlers

import (
	"html/template"
	"net/http"
)

const swaggerDist = "https://unpkg.com/swagger-ui-dist@5.10.0"

var swaggerPage = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="{{.Dist}}/swagger-ui.css">
</head>
<body style="margin:0">
<div id="swagger-ui"></div>
<script src="{{.Dist}}/swagger-ui-bundle.js"></script>
<script>
window.onload = function() {
  window.ui = SwaggerUIBundle({url: "{{.SpecURL}}", dom_id: "#swagger-ui", deepLinking: true});
};
</script>
</body>
</html>`))

type swaggerPageData struct {
	Title   string
	Dist    string
	SpecURL string
}

// SwaggerUIHandler serves a Swagger UI page rendering the document at specURL
func SwaggerUIHandler(specURL string) http.HandlerFunc {
	data := swaggerPageData{Title: "GHCN Daily Observation API", Dist: swaggerDist, SpecURL: specURL}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		swaggerPage.Execute(w, data)
	}
}
