package api

const docsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no" />
  <title>soapstream API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
</head>
<body style="height: 100vh; margin: 0; position: relative;">
  <a href="/docs/events" style="
    position: fixed;
    top: 12px;
    right: 16px;
    z-index: 9999;
    background: #161b22;
    border: 1px solid #30363d;
    border-radius: 6px;
    color: #58a6ff;
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
    font-size: 12px;
    font-weight: 500;
    padding: 5px 12px;
    text-decoration: none;
  ">Progress Events Docs →</a>
  <elements-api
    apiDescriptionUrl="/openapi.json"
    router="hash"
    layout="sidebar"
    tryItCredentialsPolicy="same-origin"
    darkMode
  />
</body>
</html>`

const eventsDocsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Progress Events · soapstream</title>
  <style>
    body { margin: 0; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; font-size: 14px; line-height: 1.65; background: #0d1117; color: #c9d1d9; }
    main { max-width: 860px; margin: 0 auto; padding: 24px 16px 64px; }
    a { color: #58a6ff; text-decoration: none; }
    h1, h2 { color: #e6edf3; font-weight: 600; }
    h2 { border-bottom: 1px solid #30363d; padding-bottom: 6px; margin-top: 32px; }
    code, pre { font-family: ui-monospace, SFMono-Regular, Menlo, monospace; font-size: 12.5px; }
    pre { background: #161b22; border: 1px solid #30363d; border-radius: 6px; padding: 12px 16px; overflow-x: auto; }
    table { border-collapse: collapse; width: 100%; }
    th, td { text-align: left; border-bottom: 1px solid #21262d; padding: 6px 8px; vertical-align: top; }
  </style>
</head>
<body>
<main>
  <p><a href="/docs">← API reference</a></p>
  <h1>Progress events</h1>
  <p>Every resolution publishes its progress to a broker. Clients follow it over
  Server-Sent Events or a WebSocket. Slow clients drop events rather than stall
  the engine.</p>

  <h2>Endpoints</h2>
  <table>
    <tr><th>Transport</th><th>URL</th></tr>
    <tr><td>SSE</td><td><code>GET /api/v1/events?feeds=state,stream</code></td></tr>
    <tr><td>WebSocket</td><td><code>GET /api/v1/events/ws?feeds=popup</code></td></tr>
  </table>
  <p><code>feeds</code> is an optional comma-separated filter. Omit it to receive every feed.</p>

  <h2>Feeds</h2>
  <table>
    <tr><th>Feed</th><th>Payload</th></tr>
    <tr><td><code>state</code></td><td><code>{"session_id","from","to","at"}</code> for each playback trigger transition</td></tr>
    <tr><td><code>popup</code></td><td><code>{"session_id","target_id","url"}</code> when a secondary page is closed</td></tr>
    <tr><td><code>stream</code></td><td><code>{"session_id","stream"}</code> once a manifest URL is resolved</td></tr>
  </table>

  <h2>SSE framing</h2>
  <p>The SSE id is a sequence number shared by all feeds; a gap means events were dropped. Idle streams get a <code>: keepalive</code> comment every 15s.</p>
<pre>id: 41
event: state
data: {"session_id":"3f2a…","from":"clicking_play","to":"gesture_simulating","terminal":false,"at":"…"}
</pre>

  <h2>WebSocket framing</h2>
  <p>One text frame per event. Messages sent by the client are ignored.</p>
<pre>{"seq":42,"feed":"stream","data":{"session_id":"3f2a…","stream":{"stream_url":"https://…/master.m3u8"}}}</pre>
</main>
</body>
</html>`
