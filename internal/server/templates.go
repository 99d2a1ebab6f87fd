// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"html/template"
	"time"

	"github.com/jeranaias/odoo-agent/internal/setup"
)

var templateFuncs = template.FuncMap{
	"level": levelClass,
	"clock": func(t time.Time) string { return t.Format("15:04:05") },
	"ms":    func(d time.Duration) string { return d.Round(time.Millisecond).String() },
	"port":  func() int { return setup.XMLRPCPort },
}

const pagesTemplate = `
{{define "head"}}<!doctype html>
<html lang="en"><head><meta charset="utf-8">
<title>Odoo Installation Agent</title>
<style>
body{font-family:system-ui,sans-serif;max-width:52rem;margin:2rem auto;padding:0 1rem;color:#222}
label{display:block;margin:.8rem 0 .2rem;font-weight:600}
input[type=text],input[type=password]{width:100%;padding:.4rem}
button{margin-top:1rem;padding:.5rem 1.2rem}
.note{background:#fff4e0;border-left:4px solid #f0a020;padding:.5rem .8rem}
.ok{color:#1a7f37}.fail{color:#cf222e}
.events{font-family:monospace;font-size:.85rem;background:#f6f8fa;padding:.6rem;white-space:pre-wrap}
.error{color:#cf222e}.warn{color:#9a6700}.debug{color:#777}
table{border-collapse:collapse}td,th{border:1px solid #ddd;padding:.3rem .6rem;text-align:left}
</style></head><body>{{end}}

{{define "index"}}{{template "head" .}}
<h1>Odoo Installation Agent</h1>
{{if not .KeyConfigured}}<p class="note">No Gemini API key is configured on the server. Enter one below or the Google integration step will fail.</p>{{end}}
<form method="post" action="/install">
<label for="version">Odoo version</label>
<input type="text" id="version" name="version" value="{{.Defaults.Version}}">
<label for="target_dir">Installation directory</label>
<input type="text" id="target_dir" name="target_dir" value="{{.Defaults.TargetDir}}">
<label for="gemini_api_key">Gemini API key</label>
<input type="password" id="gemini_api_key" name="gemini_api_key" autocomplete="off">
<p>{{if .Defaults.RealInstall}}Real installation: dependencies are installed and the server is started.{{else}}Simulated installation: nothing is installed or started.{{end}}</p>
<button type="submit">Install Odoo</button>
</form>
<p><small>odoo-agent {{.Version}}</small></p>
</body></html>{{end}}

{{define "result"}}{{template "head" .}}
<h1>Installation {{if .OK}}<span class="ok">succeeded</span>{{else}}<span class="fail">failed</span>{{end}}</h1>
<p>Run <a href="/runs/{{.Report.RunID}}"><code>{{.Report.RunID}}</code></a>, version {{.Report.Request.Version}}{{if .Report.DryRun}}, simulated{{end}}.</p>
{{with .Failure}}<p class="fail">{{.Step}} failed ({{.Kind}}): {{.Message}}</p>{{end}}
{{if and .OK (not .Report.DryRun)}}<p>Open <a href="http://localhost:{{port}}">http://localhost:{{port}}</a> to reach your Odoo instance.</p>{{end}}
<table><tr><th>Step</th><th>Status</th><th>Duration</th></tr>
{{range .Report.Steps}}<tr><td>{{.Step}}</td><td>{{.Status}}</td><td>{{ms .Duration}}</td></tr>{{end}}
</table>
<h2>Log</h2>
<div class="events">{{range .Events}}<div class="{{level .Level}}">{{clock .Time}} [{{.Step}}] {{.Message}}</div>{{end}}</div>
<p><a href="/">Run another installation</a></p>
</body></html>{{end}}
`
