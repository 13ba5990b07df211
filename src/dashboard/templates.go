package dashboard

import "html/template"

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Titanic passenger insight</title>
<style>
body { font-family: sans-serif; margin: 2em auto; max-width: 1100px; color: #222; }
section { margin-bottom: 3em; }
img { max-width: 100%; border: 1px solid #ddd; }
.muted { color: #777; font-size: 0.9em; }
</style>
</head>
<body>
<h1>Titanic passenger insight</h1>
<p class="muted">Refreshed {{.Refreshed}}</p>
<p>There are {{.UniqueNames}} unique last names in the dataset.</p>
{{range .Sections}}
<section id="{{.Kind}}">
  <h2>{{.Question}}</h2>
  {{if .Empty}}<p class="muted">No data.</p>{{else}}<img src="/charts/{{.Kind}}.png" alt="{{.Title}}">{{end}}
  <p class="muted"><a href="/api/charts/{{.Kind}}">chart data</a></p>
</section>
{{end}}
<h2>Tables</h2>
<ul>
{{range .Tables}}<li><a href="/api/tables/{{.}}">{{.}}</a></li>
{{end}}</ul>
<p class="muted"><a href="/logs">live log</a></p>
</body>
</html>
`))
