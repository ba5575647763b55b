package web

import "html/template"

type pageData struct {
	Backends []string
	Presets  []string
	Default  string
	OutDir   string
}

var pageTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="en"><head>
<meta charset="utf-8"><meta name="viewport" content="width=device-width,initial-scale=1"/>
<title>LinkedIn Harvester</title>
<link rel="icon" href="data:,">
<script src="https://cdn.tailwindcss.com"></script>
<script>
tailwind.config = { theme: { extend: {
  colors:{ primary:{DEFAULT:'hsl(200 98% 39%)', glow:'hsl(200 100% 50%)'}, accent:'hsl(158 64% 52%)' },
  boxShadow:{ card:'0 2px 10px -1px rgba(18,38,63,.12)' }
}}}
</script>
<style>
.gradient-text{background:linear-gradient(135deg,hsl(200 98% 39%),hsl(200 100% 50%));-webkit-background-clip:text;background-clip:text;color:transparent}
.table-wrap{max-height:420px;overflow:auto} th,td{white-space:nowrap}
</style>
</head>
<body class="bg-gray-50 text-gray-900">
<div class="max-w-7xl mx-auto px-4 py-8">
  <header class="text-center mb-8">
    <h1 class="text-3xl font-bold gradient-text">LinkedIn Harvester</h1>
    <p class="text-xs text-gray-500 mt-1">Results are written to {{.OutDir}}</p>
  </header>

  <div class="grid grid-cols-1 lg:grid-cols-3 gap-6">
    <div class="lg:col-span-1">
      <div class="bg-white border rounded-xl shadow-card p-5">
        <h2 class="text-lg font-semibold mb-4">Account</h2>
        <label class="block">
          <span class="text-sm">Username</span>
          <input id="username" type="email" class="mt-1 w-full border rounded-md px-3 py-2 focus:ring-2 focus:ring-primary" placeholder="you@example.com">
          <span class="text-xs text-gray-500">The password comes from the keyring. Run <code>harvester store</code> first.</span>
        </label>
        <hr class="my-4">
        <h2 class="text-lg font-semibold mb-3">Search</h2>
        <div class="space-y-3">
          <label class="block">
            <span class="text-sm">Names, one per line</span>
            <textarea id="names" rows="8" class="mt-1 w-full border rounded-md px-3 py-2 font-mono text-sm focus:ring-2 focus:ring-primary"></textarea>
          </label>
          <div class="grid grid-cols-2 gap-3">
            <label class="block">
              <span class="text-sm">Browser</span>
              <select id="backend" class="mt-1 w-full border rounded-md px-3 py-2">
                {{range .Backends}}<option value="{{.}}"{{if eq . $.Default}} selected{{end}}>{{.}}</option>{{end}}
              </select>
            </label>
            <label class="block">
              <span class="text-sm">Schema</span>
              <select id="schema" class="mt-1 w-full border rounded-md px-3 py-2">
                {{range .Presets}}<option value="{{.}}"{{if eq . "full"}} selected{{end}}>{{.}}</option>{{end}}
              </select>
            </label>
          </div>
          <div class="grid grid-cols-3 gap-3 text-sm">
            <label class="inline-flex items-center"><input id="headless" type="checkbox" class="mr-2" checked>Headless</label>
            <label class="inline-flex items-center"><input id="dump-html" type="checkbox" class="mr-2">Dump HTML</label>
            <label class="inline-flex items-center"><input id="bom" type="checkbox" class="mr-2">Excel BOM</label>
          </div>
        </div>

        <button id="runBtn" class="mt-5 w-full py-2 rounded-lg bg-primary text-white font-medium hover:opacity-90">
          Start crawl
        </button>
      </div>
    </div>

    <div class="lg:col-span-2 space-y-6">
      <div class="bg-white border rounded-xl shadow-card p-5">
        <div class="flex items-center justify-between mb-3">
          <h2 class="text-lg font-semibold">Run &amp; logs</h2>
          <span id="statusBadge" class="text-xs px-2 py-1 rounded-full bg-gray-100 text-gray-600">Idle</span>
        </div>
        <div id="logBox" class="border rounded-md bg-gray-50 h-64 overflow-y-auto p-3 text-xs font-mono text-gray-800">Waiting for logs…</div>
        <div class="flex items-center justify-between mt-3">
          <div class="text-xs text-gray-500"><span id="startedAt">—</span> • <span id="endedAt">—</span></div>
          <a id="csvLink" href="#" class="hidden text-sm px-3 py-1 rounded-md border hover:bg-gray-100">Download CSV</a>
        </div>
      </div>

      <div class="bg-white border rounded-xl shadow-card p-5">
        <div class="flex items-center justify-between mb-3">
          <h2 class="text-lg font-semibold">Results</h2>
          <span id="resultsBadge" class="text-xs px-2 py-1 rounded-full bg-gray-100 text-gray-600">0 rows</span>
        </div>
        <div id="noResults" class="text-sm text-gray-500">No results yet.</div>
        <div id="resultsWrap" class="table-wrap hidden border rounded-md">
          <table class="min-w-full divide-y divide-gray-200 text-sm">
            <thead class="bg-gray-50"><tr id="resultsHead"></tr></thead>
            <tbody id="resultsBody" class="divide-y divide-gray-200"></tbody>
          </table>
        </div>
      </div>
    </div>
  </div>
</div>

<script>
(function () {
  const $ = (id) => document.getElementById(id);
  const logBox = $('logBox');

  function appendLog(line) {
    if (logBox.textContent.trim() === 'Waiting for logs…') logBox.textContent = '';
    const p = document.createElement('div');
    p.textContent = line;
    logBox.appendChild(p);
    logBox.scrollTop = logBox.scrollHeight;
  }

  function setStatus(txt, color) {
    $('statusBadge').textContent = txt;
    $('statusBadge').className = 'text-xs px-2 py-1 rounded-full ' + color;
  }

  function renderResults(header, rows) {
    $('resultsHead').innerHTML = '';
    $('resultsBody').innerHTML = '';
    if (!header || !rows || !rows.length) {
      $('noResults').classList.remove('hidden');
      $('resultsWrap').classList.add('hidden');
      $('resultsBadge').textContent = '0 rows';
      return;
    }
    $('noResults').classList.add('hidden');
    $('resultsWrap').classList.remove('hidden');
    $('resultsBadge').textContent = rows.length + ' rows';
    for (const h of header) {
      const th = document.createElement('th');
      th.className = 'px-3 py-2 text-left font-medium text-gray-700';
      th.textContent = h;
      $('resultsHead').appendChild(th);
    }
    for (const r of rows) {
      const tr = document.createElement('tr');
      for (const h of header) {
        const td = document.createElement('td');
        td.className = 'px-3 py-2';
        td.textContent = r[h] || '';
        tr.appendChild(td);
      }
      $('resultsBody').appendChild(tr);
    }
  }

  $('runBtn').addEventListener('click', async () => {
    const payload = {
      username: $('username').value.trim(),
      names:    $('names').value,
      backend:  $('backend').value,
      schema:   $('schema').value,
      headless: $('headless').checked,
      dump_html:$('dump-html').checked,
      bom:      $('bom').checked
    };

    $('csvLink').classList.add('hidden');
    $('startedAt').textContent = new Date().toLocaleTimeString();
    $('endedAt').textContent = '—';
    logBox.textContent = 'Waiting for logs…';
    renderResults(null, null);
    setStatus('Running', 'bg-primary/10 text-primary');

    const resp = await fetch('/run', {
      method: 'POST',
      headers: {'Content-Type':'application/json'},
      body: JSON.stringify(payload)
    });
    if (!resp.ok) {
      setStatus('HTTP error', 'bg-red-100 text-red-700');
      appendLog('Error: ' + resp.status + ' ' + resp.statusText);
      return;
    }

    const reader = resp.body.getReader();
    const decoder = new TextDecoder();
    let buffer = '';
    let finalData = null;
    while (true) {
      const {value, done} = await reader.read();
      if (done) break;
      buffer += decoder.decode(value, {stream:true});
      const parts = buffer.split('\n');
      buffer = parts.pop();
      for (const line of parts) {
        if (!line) continue;
        try {
          const ev = JSON.parse(line);
          if (ev.type === 'log') appendLog(ev.msg);
          else if (ev.type === 'done') finalData = ev.data;
        } catch {
          appendLog(line);
        }
      }
    }

    $('endedAt').textContent = new Date().toLocaleTimeString();
    if (!finalData) {
      setStatus('Failed', 'bg-red-100 text-red-700');
      return;
    }
    if (finalData.csv_path) {
      $('csvLink').href = '/download?path=' + encodeURIComponent(finalData.csv_path);
      $('csvLink').classList.remove('hidden');
    }
    renderResults(finalData.header, finalData.results);
    if (finalData.ok) {
      setStatus('Done', 'bg-green-100 text-green-700');
    } else {
      setStatus('Failed', 'bg-red-100 text-red-700');
      appendLog(finalData.message || 'crawl failed');
    }
  });
})();
</script>
</body></html>`))
