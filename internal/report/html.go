package report

import (
	"html/template"
	"io"

	"github.com/valpere/transqa/internal/qa"
)

type htmlRenderer struct{}

var htmlFuncs = template.FuncMap{
	"pct": func(f float64) float64 { return f * 100 },
	"inc": func(i int) int { return i + 1 },
}

const styleBlock = `<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
h1 { font-size: 1.3em; }
h2 { font-size: 1.1em; margin-top: 2em; border-top: 2px solid #ddd; padding-top: 1em; }
table { border-collapse: collapse; width: 100%; margin-top: 1em; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; vertical-align: top; font-size: 0.9em; }
th { background: #f3f3f3; }
.sev-critical { color: #fff; background: #b00020; padding: 2px 6px; border-radius: 3px; }
.sev-error { color: #fff; background: #d35400; padding: 2px 6px; border-radius: 3px; }
.sev-warning { color: #222; background: #f1c40f; padding: 2px 6px; border-radius: 3px; }
.sev-info { color: #fff; background: #2980b9; padding: 2px 6px; border-radius: 3px; }
.summary dt { font-weight: bold; float: left; clear: left; width: 10em; }
.summary dd { margin-left: 11em; }
.failed { color: #b00020; font-weight: bold; }
code { background: #f6f6f6; padding: 1px 4px; }
</style>`

const pageBodyTmpl = `{{define "pageBody"}}{{if .AnalysisError}}<p class="failed">Analysis failed: {{.AnalysisError}}</p>{{end}}
<dl class="summary">
{{if .PageTitle}}<dt>Title</dt><dd>{{.PageTitle}}</dd>{{end}}
<dt>Target language</dt><dd>{{.TargetLang}}</dd>
<dt>Overall score</dt><dd>{{printf "%.2f" .Stats.OverallScore}}</dd>
<dt>Language purity</dt><dd>{{printf "%.1f" (pct .Stats.LanguagePurityScore)}}%</dd>
<dt>Blocks</dt><dd>{{.Stats.TotalBlocks}}</dd>
<dt>Issues</dt><dd>{{len .Issues}}</dd>
</dl>
{{if .Issues}}
<table>
<tr><th>Severity</th><th>Type</th><th>Message</th><th>Snippet</th><th>Suggestion</th><th>Location</th><th>Confidence</th></tr>
{{range .Issues}}
<tr>
<td><span class="sev-{{.Severity}}">{{.Severity}}</span></td>
<td>{{.Type}}{{if .RuleID}}<br><code>{{.RuleID}}</code>{{end}}</td>
<td>{{.Message}}</td>
<td>{{.Snippet}}</td>
<td>{{.Suggestion}}</td>
<td><code>{{.XPath}}</code><br>[{{.OffsetStart}}:{{.OffsetEnd}}]</td>
<td>{{printf "%.2f" .Confidence}}</td>
</tr>
{{end}}
</table>
{{else}}
<p>No issues found.</p>
{{end}}{{end}}`

const pageTmpl = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>transqa report: {{.URL}}</title>
` + styleBlock + `
</head>
<body>
<h1>{{.URL}}</h1>
{{template "pageBody" .}}
</body>
</html>
`

const batchTmpl = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>transqa batch report</title>
` + styleBlock + `
</head>
<body>
<h1>Batch report: {{len .Pages}} pages, target {{.TargetLang}}</h1>
<table>
<tr><th>#</th><th>URL</th><th>Score</th><th>Issues</th><th>Status</th></tr>
{{range $i, $p := .Pages}}
<tr>
<td>{{inc $i}}</td>
<td><a href="#page-{{$i}}">{{$p.URL}}</a></td>
<td>{{printf "%.2f" $p.Stats.OverallScore}}</td>
<td>{{len $p.Issues}}</td>
<td>{{if $p.AnalysisError}}<span class="failed">failed</span>{{else}}ok{{end}}</td>
</tr>
{{end}}
</table>
{{range $i, $p := .Pages}}
<h2 id="page-{{$i}}">{{$p.URL}}</h2>
{{template "pageBody" $p}}
{{end}}
</body>
</html>
`

var pageTemplate = template.Must(
	template.New("page").Funcs(htmlFuncs).Parse(pageBodyTmpl + pageTmpl))

var batchTemplate = template.Must(
	template.New("batch").Funcs(htmlFuncs).Parse(pageBodyTmpl + batchTmpl))

func (r *htmlRenderer) RenderPage(w io.Writer, result *qa.PageResult) error {
	return pageTemplate.Execute(w, result)
}

func (r *htmlRenderer) RenderBatch(w io.Writer, batch *qa.BatchResult) error {
	return batchTemplate.Execute(w, batch)
}
