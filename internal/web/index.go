package web

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>hyperdash</title>
<style>
  body { background: #0c0e12; color: #d7dce2; font: 13px/1.5 "SF Mono", Menlo, monospace; margin: 0; padding: 16px; }
  h1 { font-size: 15px; margin: 0 0 12px; }
  .row { display: flex; gap: 24px; flex-wrap: wrap; }
  .panel { background: #14171d; border: 1px solid #232831; border-radius: 6px; padding: 12px; min-width: 280px; }
  table { border-collapse: collapse; width: 100%; }
  td, th { padding: 1px 10px; text-align: right; white-space: nowrap; }
  th { color: #6b7280; font-weight: normal; }
  .bid { color: #2ebd85; }
  .ask { color: #f6465d; }
  .muted { color: #6b7280; }
  #status.down { color: #f6465d; }
  select { background: #1c2129; color: #d7dce2; border: 1px solid #232831; padding: 2px 6px; }
</style>
</head>
<body>
<h1>hyperdash
  <select id="symbol"></select>
  <select id="interval"></select>
  <span id="status" class="muted">connecting…</span>
  <span id="mid" class="muted"></span>
  <span id="spread" class="muted"></span>
</h1>
<div class="row">
  <div class="panel">
    <table id="book"><thead><tr><th>Price</th><th>Size</th><th>Total</th></tr></thead><tbody></tbody></table>
  </div>
  <div class="panel">
    <table id="trades"><thead><tr><th>Price</th><th>Size</th><th>Time</th></tr></thead><tbody></tbody></table>
  </div>
  <div class="panel">
    <table id="candles"><thead><tr><th>Open</th><th>High</th><th>Low</th><th>Close</th><th>Time</th></tr></thead><tbody></tbody></table>
  </div>
</div>
<script>
const intervals = ["1m","5m","15m","30m","1h","2h","4h","1d","1w"];
const symbolSel = document.getElementById("symbol");
const intervalSel = document.getElementById("interval");
intervals.forEach(iv => intervalSel.add(new Option(iv, iv)));

let current = { symbol: "", interval: "" };

fetch("/selection").then(r => r.json()).then(sel => {
  (sel.assets || []).forEach(a => symbolSel.add(new Option(a.name, a.name)));
  symbolSel.value = sel.symbol;
  intervalSel.value = sel.interval;
  current = { symbol: sel.symbol, interval: sel.interval };
});

function changeSelection() {
  current = { symbol: symbolSel.value, interval: intervalSel.value };
  fetch("/selection", { method: "POST", headers: { "Content-Type": "application/json" }, body: JSON.stringify(current) });
}
symbolSel.onchange = changeSelection;
intervalSel.onchange = changeSelection;

function fmtTime(ms) { return new Date(ms).toLocaleTimeString(); }

const es = new EventSource("/market/stream");

es.addEventListener("status", e => {
  const st = JSON.parse(e.data);
  current.symbol = st.symbol;
  const el = document.getElementById("status");
  let text = st.connected ? st.symbol + " · " + st.interval : "disconnected";
  if (st.connected && st.last) text += " · " + st.last + (st.change ? " " + st.change : "");
  el.textContent = text;
  el.className = st.connected ? "muted" : "down";
});

es.addEventListener("mids", e => {
  const mids = JSON.parse(e.data);
  const q = mids[current.symbol];
  const el = document.getElementById("mid");
  if (!q) { el.textContent = ""; return; }
  el.textContent = "mid " + q.mid + (q.dir > 0 ? " ▲" : q.dir < 0 ? " ▼" : "");
  el.className = q.dir > 0 ? "bid" : q.dir < 0 ? "ask" : "muted";
});

es.addEventListener("book", e => {
  const book = JSON.parse(e.data);
  const rows = [];
  (book.asks || []).slice().reverse().forEach(l =>
    rows.push('<tr class="ask"><td>' + l.px + "</td><td>" + l.sz + "</td><td>" + l.total + "</td></tr>"));
  (book.bids || []).forEach(l =>
    rows.push('<tr class="bid"><td>' + l.px + "</td><td>" + l.sz + "</td><td>" + l.total + "</td></tr>"));
  document.querySelector("#book tbody").innerHTML = rows.join("");
  const spread = document.getElementById("spread");
  spread.textContent = book.spread.unavailable ? "spread —" : "spread " + book.spread.absolute + " (" + book.spread.percent + ")";
});

es.addEventListener("trades", e => {
  const trades = JSON.parse(e.data);
  document.querySelector("#trades tbody").innerHTML = trades.map(t =>
    '<tr class="' + (t.side === "buy" ? "bid" : "ask") + '"><td>' + t.px + "</td><td>" + t.sz + "</td><td>" + fmtTime(t.time) + "</td></tr>"
  ).join("");
});

es.addEventListener("candles", e => {
  const candles = JSON.parse(e.data).slice(-30).reverse();
  document.querySelector("#candles tbody").innerHTML = candles.map(c =>
    "<tr><td>" + c.o + "</td><td>" + c.h + "</td><td>" + c.l + "</td><td>" + c.c + '</td><td class="muted">' + fmtTime(c.t) + "</td></tr>"
  ).join("");
});
</script>
</body>
</html>
`
