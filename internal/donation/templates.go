package donation

// HTML templates for donation site pages

const indexPageHTML = `<!DOCTYPE html>
<html lang="tr">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Askıda Forma</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: #f1f5f9;
            color: #1f2937;
            min-height: 100vh;
            padding: 24px 16px;
        }
        .container { max-width: 960px; margin: 0 auto; }
        header { text-align: center; margin-bottom: 24px; }
        h1 { font-size: 32px; font-weight: 800; }
        .subtitle { color: #64748b; margin-top: 6px; }
        .tabs { display: flex; gap: 8px; justify-content: center; margin-bottom: 20px; }
        .tab { padding: 10px 18px; border-radius: 999px; border: none; background: #e2e8f0; cursor: pointer; font-weight: 600; }
        .tab.active { background: #1f2937; color: white; }
        .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(220px, 1fr)); gap: 16px; }
        .card { background: white; border-radius: 16px; box-shadow: 0 4px 16px rgba(0,0,0,0.08); padding: 18px; }
        .card img { width: 100%; height: 180px; object-fit: contain; }
        .card h3 { margin: 10px 0 4px; }
        .price { font-size: 20px; font-weight: 700; margin: 8px 0; }
        .btn {
            display: inline-block; padding: 12px 20px; border-radius: 10px; border: none;
            font-size: 15px; font-weight: 600; cursor: pointer; width: 100%; margin-top: 8px;
        }
        .btn-primary { background: #16a34a; color: white; }
        .btn-secondary { background: #f1f5f9; color: #1f2937; }
        .row { display: flex; gap: 8px; align-items: center; }
        input, select { padding: 10px; border: 1px solid #cbd5e1; border-radius: 8px; width: 100%; font-size: 15px; }
        .panel { max-width: 520px; margin: 0 auto; }
        .iban { font-family: monospace; font-size: 18px; background: #f8fafc; padding: 12px; border-radius: 8px; margin: 12px 0; }
        .list li { list-style: none; padding: 10px 0; border-bottom: 1px solid #e2e8f0; }
        .message { padding: 12px; border-radius: 8px; margin: 12px auto; max-width: 520px; text-align: center; }
        .message-error { background: #fee2e2; color: #b91c1c; }
        .message-success { background: #dcfce7; color: #166534; }
        .hidden { display: none; }
        .faq dt { font-weight: 700; margin-top: 14px; }
        .faq dd { color: #475569; margin-top: 4px; }
        .thanks img { width: 100%; border-radius: 12px; margin: 12px 0; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>Askıda Forma</h1>
            <p class="subtitle">Bir forma, bir çocuğun yüzünde kocaman bir gülümseme.</p>
        </header>
        <div id="message" class="message hidden"></div>
        <div id="catalog">
            <div class="tabs">
                <button class="tab" data-tab="donate" onclick="showTab('donate')">Bağış Yap</button>
                <button class="tab" data-tab="donations" onclick="showTab('donations')">Son Bağışlar</button>
                <button class="tab" data-tab="faq" onclick="showTab('faq')">SSS</button>
            </div>
            <section id="tab-donate">
                <div id="products" class="grid"></div>
                <div class="card panel" style="margin-top:20px">
                    <h3>Bağış Havuzu</h3>
                    <p class="subtitle">Takımını seç, dilediğin tutarla havuza destek ol.</p>
                    <select id="pool-team"></select>
                    <div id="pool-quick" class="row" style="margin-top:8px"></div>
                    <input id="pool-amount" type="number" min="1" placeholder="Tutar (TL)" style="margin-top:8px">
                    <button class="btn btn-primary" onclick="startPool()">Havuza Bağış Yap</button>
                </div>
            </section>
            <section id="tab-donations" class="hidden">
                <div class="card"><h3>Takım Sıralaması</h3><ul id="totals" class="list"></ul></div>
                <div class="card" style="margin-top:16px"><h3>Son Bağışlar</h3><ul id="donations" class="list"></ul></div>
            </section>
            <section id="tab-faq" class="hidden">
                <dl id="faq" class="card faq"></dl>
            </section>
        </div>
        <div id="step-payment" class="card panel hidden">
            <h3>Havale / EFT ile Ödeme</h3>
            <p id="payment-summary" class="price"></p>
            <p>Alıcı: <strong id="bank-recipient"></strong></p>
            <div id="bank-iban" class="iban"></div>
            <p id="bank-note" class="subtitle"></p>
            <button class="btn btn-primary" onclick="post('/api/checkout/confirm-payment')">Ödemeyi Yaptım</button>
            <button class="btn btn-secondary" onclick="post('/api/checkout/back')">Geri Dön</button>
        </div>
        <div id="step-identity" class="card panel hidden">
            <h3>Bağışınız nasıl görünsün?</h3>
            <select id="identity-type" onchange="toggleIdentity()">
                <option value="name">Ad Soyad</option>
                <option value="instagram">Instagram</option>
                <option value="twitter">X (Twitter)</option>
            </select>
            <div id="identity-name" class="row" style="margin-top:8px">
                <input id="name" placeholder="Ad"><input id="surname" placeholder="Soyad">
            </div>
            <input id="handle" class="hidden" placeholder="@kullaniciadi" style="margin-top:8px">
            <input id="email" type="email" placeholder="E-posta (isteğe bağlı)" style="margin-top:8px">
            <button id="identity-submit" class="btn btn-primary" onclick="submitIdentity()">Bağışı Tamamla</button>
            <button class="btn btn-secondary" onclick="post('/api/checkout/back')">Geri Dön</button>
        </div>
        <div id="step-thanks" class="card panel thanks hidden">
            <h3>Teşekkürler!</h3>
            <p id="thanks-text"></p>
            <img id="card-image" alt="Bağış kartı">
            <a id="card-download" class="btn btn-secondary" style="text-align:center;text-decoration:none">Kartı İndir</a>
            <div class="row">
                <a id="share-twitter" class="btn btn-secondary" target="_blank" rel="noopener" style="text-align:center;text-decoration:none">X'te Paylaş</a>
                <a id="share-whatsapp" class="btn btn-secondary" target="_blank" rel="noopener" style="text-align:center;text-decoration:none">WhatsApp</a>
            </div>
            <button class="btn btn-primary" onclick="post('/api/checkout/finish')">Bağışlara Dön</button>
        </div>
    </div>

    <script>
        let catalog = null;

        function esc(s) {
            const d = document.createElement('div');
            d.textContent = s == null ? '' : String(s);
            return d.innerHTML;
        }

        function tl(v) {
            return Number(v).toLocaleString('tr-TR', { minimumFractionDigits: 0, maximumFractionDigits: 2 }) + ' TL';
        }

        function showMessage(text, isError) {
            const msg = document.getElementById('message');
            msg.textContent = text;
            msg.className = 'message ' + (isError ? 'message-error' : 'message-success');
            setTimeout(() => msg.classList.add('hidden'), 5000);
        }

        function showTab(name) {
            ['donate', 'donations', 'faq'].forEach(t => {
                document.getElementById('tab-' + t).classList.toggle('hidden', t !== name);
            });
            document.querySelectorAll('.tab').forEach(b => b.classList.toggle('active', b.dataset.tab === name));
        }

        async function request(method, url, body) {
            const opts = { method: method, headers: {} };
            if (body !== undefined) {
                opts.headers['Content-Type'] = 'application/json';
                opts.body = JSON.stringify(body);
            }
            const resp = await fetch(url, opts);
            const data = await resp.json().catch(() => ({}));
            if (!resp.ok) {
                throw new Error(data.message || 'İşlem başarısız oldu');
            }
            return data;
        }

        async function post(url, body) {
            try {
                render(await request('POST', url, body === undefined ? {} : body));
            } catch (e) {
                showMessage(e.message, true);
                refresh();
            }
        }

        async function loadCatalog() {
            try {
                catalog = await request('GET', '/api/catalog');
            } catch (e) {
                showMessage(e.message, true);
                return;
            }
            document.getElementById('products').innerHTML = catalog.products.map(p =>
                '<div class="card" style="border-top:4px solid ' + esc(p.teams.primary_color || '#1f2937') + '">' +
                (p.image_url ? '<img src="' + esc(p.image_url) + '" alt="">' : '') +
                '<h3 style="color:' + esc(p.text_color) + '">' + esc(p.teams.name) + '</h3>' +
                '<p class="subtitle">' + esc(p.description || '') + ' ' + esc(p.age_range || '') + '</p>' +
                '<p class="price">' + tl(p.price) + '</p>' +
                '<div class="row"><input id="qty-' + p.id + '" type="number" min="1" max="' + catalog.max_quantity + '" value="1"></div>' +
                '<button class="btn btn-primary" onclick="startJersey(' + p.id + ')">Forma Bağışla</button>' +
                '</div>').join('');
            document.getElementById('pool-team').innerHTML = catalog.teams.map(t =>
                '<option value="' + t.id + '">' + esc(t.name) + '</option>').join('');
            document.getElementById('pool-quick').innerHTML = catalog.pool_quick_amounts.map(a =>
                '<button class="btn btn-secondary" onclick="document.getElementById(\'pool-amount\').value=' + a + '">' + tl(a) + '</button>').join('');
            renderDonations(catalog.donations);
            document.getElementById('totals').innerHTML = catalog.totals.map(t =>
                '<li>' + esc(t.name) + ' <strong>' + t.total_jerseys + ' forma</strong></li>').join('');
            document.getElementById('faq').innerHTML = catalog.faq.map(f =>
                '<dt>' + esc(f.q) + '</dt><dd>' + f.a + '</dd>').join('');
            showTab(catalog.hint || 'donate');
        }

        function renderDonations(list) {
            document.getElementById('donations').innerHTML = list.map(d => {
                const who = d.donor ? esc(d.donor.display_name) : 'Anonim';
                const what = d.type === 'jersey' ? (d.quantity + ' forma') : tl(d.amount_tl);
                return '<li><strong>' + who + '</strong> ' + esc(d.team.name) + ' için ' + what + '</li>';
            }).join('');
        }

        function startJersey(id) {
            const qty = parseInt(document.getElementById('qty-' + id).value, 10);
            post('/api/checkout/start', { kind: 'jersey', product_id: id, quantity: qty });
        }

        function startPool() {
            const amount = document.getElementById('pool-amount').value;
            const team = parseInt(document.getElementById('pool-team').value, 10);
            post('/api/checkout/start', { kind: 'pool', team_id: team, amount: amount });
        }

        function toggleIdentity() {
            const kind = document.getElementById('identity-type').value;
            document.getElementById('identity-name').classList.toggle('hidden', kind !== 'name');
            document.getElementById('handle').classList.toggle('hidden', kind === 'name');
        }

        async function submitIdentity() {
            const button = document.getElementById('identity-submit');
            button.disabled = true;
            await post('/api/checkout/identity', {
                identity_type: document.getElementById('identity-type').value,
                name: document.getElementById('name').value,
                surname: document.getElementById('surname').value,
                handle: document.getElementById('handle').value,
                email: document.getElementById('email').value
            });
            button.disabled = false;
        }

        function render(view) {
            const state = view.checkout.state;
            const p = view.checkout.payload;
            document.getElementById('catalog').classList.toggle('hidden', state !== 'browsing');
            document.getElementById('step-payment').classList.toggle('hidden', state !== 'awaiting_payment');
            document.getElementById('step-identity').classList.toggle('hidden', state !== 'capturing_identity');
            document.getElementById('step-thanks').classList.toggle('hidden', state !== 'confirmed');

            if (state === 'browsing') {
                loadCatalog();
            } else if (state === 'awaiting_payment') {
                const what = p.kind === 'jersey' ? (p.quantity + ' adet ' + p.target_label + ' forması') : (p.target_label + ' bağış havuzu');
                document.getElementById('payment-summary').textContent = what + ': ' + tl(p.total_amount);
                document.getElementById('bank-recipient').textContent = view.bank.recipient;
                document.getElementById('bank-iban').textContent = view.bank.iban;
                document.getElementById('bank-note').textContent = view.bank.note;
            } else if (state === 'confirmed' && view.card) {
                document.getElementById('thanks-text').textContent = view.card.share_text;
                document.getElementById('card-image').src = view.card.image_url + '?s=' + encodeURIComponent(view.card.serial);
                const dl = document.getElementById('card-download');
                dl.href = view.card.image_url;
                dl.download = view.card.file_name;
                document.getElementById('share-twitter').href = view.card.share_links.twitter;
                document.getElementById('share-whatsapp').href = view.card.share_links.whatsapp;
            }
        }

        async function refresh() {
            try {
                render(await request('GET', '/api/checkout'));
            } catch (e) {
                showMessage(e.message, true);
            }
        }

        function connectFeed() {
            const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
            const ws = new WebSocket(proto + location.host + '/api/donations/live');
            ws.onmessage = ev => {
                const msg = JSON.parse(ev.data);
                if (msg.type === 'donation' && catalog) {
                    catalog.donations.unshift(msg.donation);
                    renderDonations(catalog.donations);
                }
            };
            ws.onclose = () => setTimeout(connectFeed, 5000);
        }

        refresh();
        connectFeed();
    </script>
</body>
</html>`
