package handlers

// galleryTemplate renders one viewer session: heatmap, stats and revealed items
const galleryTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Sketch Gallery</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: #0d1117;
            color: #c9d1d9;
            padding: 24px;
        }
        h1 { font-size: 20px; margin-bottom: 16px; }
        .error {
            background: #3d1418;
            border: 1px solid #f85149;
            padding: 12px 16px;
            border-radius: 6px;
            margin-bottom: 16px;
        }
        .calendar { overflow-x: auto; margin-bottom: 12px; }
        .months, .week-row { display: grid; gap: 2px; }
        .week-row { grid-template-columns: 32px repeat(54, 11px); }
        .months {
            grid-template-columns: repeat(54, 11px);
            padding-left: 34px;
            font-size: 10px; color: #8b949e; margin-bottom: 2px;
        }
        .weekday { font-size: 10px; color: #8b949e; line-height: 11px; }
        .day { width: 11px; height: 11px; border-radius: 2px; }
        .day.out { visibility: hidden; }
        .level-0 { background: #161b22; }
        .level-1 { background: #0e4429; }
        .level-2 { background: #006d32; }
        .level-3 { background: #26a641; }
        .level-4 { background: #39d353; }
        .stats { display: flex; gap: 24px; align-items: center; margin: 12px 0 20px; }
        .stats select, .controls button {
            background: #21262d;
            color: #c9d1d9;
            border: 1px solid #30363d;
            border-radius: 6px;
            padding: 4px 10px;
        }
        .gallery {
            display: grid;
            grid-template-columns: repeat(auto-fill, minmax(200px, 1fr));
            gap: 12px;
        }
        .gallery-item { position: relative; background: #161b22; border-radius: 6px; overflow: hidden; }
        .gallery-item img { width: 100%; display: block; cursor: zoom-in; }
        .gallery-item .date-label {
            position: absolute; left: 6px; bottom: 6px;
            font-size: 11px; background: rgba(0,0,0,.6); padding: 2px 6px; border-radius: 4px;
        }
        .ctrl-btn {
            position: absolute; top: 6px;
            font-size: 11px; background: rgba(0,0,0,.6); color: #fff;
            border: 0; border-radius: 4px; padding: 2px 6px; cursor: pointer;
        }
        .open-btn { right: 54px; }
        .copy-btn { right: 6px; }
        .controls { display: flex; gap: 8px; margin-top: 20px; justify-content: center; }
        .modal {
            display: none; position: fixed; inset: 0;
            background: rgba(0,0,0,.85); align-items: center; justify-content: center;
        }
        .modal.show { display: flex; }
        .modal img { max-width: 95vw; max-height: 95vh; }
        .empty { color: #8b949e; }
    </style>
</head>
<body>
    <h1>Sketch Gallery</h1>

    {{if .Snap.Error}}
    <div class="error">Failed to load the gallery: {{.Snap.Error}}
        <button onclick="act('reload')">Retry</button>
    </div>
    {{end}}

    <div class="calendar">
        <div class="months">
            {{range .Snap.MonthLabels}}<span style="grid-column: {{.Column}} / span 4">{{.Name}}</span>{{end}}
        </div>
        {{range $i, $row := .Rows}}
        <div class="week-row">
            <span class="weekday">{{if eq $i 1}}Mon{{else if eq $i 3}}Wed{{else if eq $i 5}}Fri{{end}}</span>
            {{range $row}}<span class="day level-{{.Level}}{{if not .InYear}} out{{end}}" title="{{.Key}}: {{.Count}}"></span>{{end}}
        </div>
        {{end}}
    </div>

    <div class="stats">
        <label>Year
            <select id="year" onchange="selectYear(this.value)">
                {{range .Snap.Years}}<option value="{{.}}"{{if eq . $.Snap.SelectedYear}} selected{{end}}>{{.}}</option>{{end}}
            </select>
        </label>
        <span>{{.Snap.YearTotal}} uploads in {{.Snap.SelectedYear}}</span>
        <span>{{.Snap.TotalAll}} total</span>
    </div>

    {{if .Items}}
    <div class="gallery">
        {{range .Items}}
        <div class="gallery-item">
            <img src="/api/thumbnails/{{.Name}}" alt="{{.Name}}" loading="lazy" data-url="{{.URL}}" onclick="openModal(this.dataset.url)">
            <button class="ctrl-btn open-btn" data-url="{{.URL}}" onclick="window.open(this.dataset.url, '_blank')">Open</button>
            <button class="ctrl-btn copy-btn" data-url="{{.URL}}" onclick="navigator.clipboard.writeText(new URL(this.dataset.url, location.href).href)">Copy</button>
            {{if .Label}}<span class="date-label">{{.Label}}</span>{{end}}
        </div>
        {{end}}
    </div>
    {{else if .Snap.Loaded}}
    <p class="empty">No images yet.</p>
    {{end}}

    {{if not .Snap.AllRevealed}}
    <div class="controls">
        <button onclick="act('next')">Show {{.Snap.NextBatch}} more</button>
        <button onclick="act('all')">Show all ({{.Snap.Remaining}} remaining)</button>
    </div>
    {{end}}

    <div class="modal" id="modal" onclick="if (event.target === this) this.classList.remove('show')">
        <img id="modal-img" alt="preview">
    </div>

    <script>
        function post(path, body) {
            return fetch('/api/gallery/' + path, {
                method: 'POST',
                credentials: 'same-origin',
                headers: { 'Content-Type': 'application/json' },
                body: body ? JSON.stringify(body) : null
            });
        }
        function act(path) { post(path).then(function () { location.reload(); }); }
        function selectYear(year) {
            post('year', { year: parseInt(year, 10) }).then(function () { location.reload(); });
        }
        function openModal(url) {
            document.getElementById('modal-img').src = url;
            document.getElementById('modal').classList.add('show');
        }

        (function connect() {
            var scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            var ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function () {
                ws.send(JSON.stringify({ type: 'subscribe', payload: 'gallery' }));
            };
            ws.onmessage = function (e) {
                var msg = JSON.parse(e.data);
                if (msg.type === 'manifest_published') {
                    act('reload');
                }
            };
            ws.onclose = function () { setTimeout(connect, 5000); };
        })();
    </script>
</body>
</html>
`
