package hostpatch

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

const hostDoc = `<!DOCTYPE html>
<html>
<head>
  <title>Metrics</title>
</head>
<body>
  <div id="table"></div>
  <script>
async function loadData() {
  const response = await fetch("data/data.json");
  return response.json();
}

function render(data) {
  document.getElementById("table").textContent = JSON.stringify(data);
}

loadData().then(render);
  </script>
</body>
</html>
`

const gateDoc = `<html><body>
<p class="staticrypt-title">Protected page</p>
<script>
  if (isRememberEnabled && isRememberChecked) {
    window.localStorage.setItem(rememberPassphraseKey, hashedPassword);
  }
</script>
</body></html>`

func TestLookupPatchSet(t *testing.T) {
	ps, err := LookupPatchSet("staticrypt-3")
	assert.NoError(t, err)
	assert.Equal(t, StatiCrypt3, ps)

	_, err = LookupPatchSet("staticrypt-2")
	assert.ErrorIs(t, err, ErrUnknownPatchSet)
	assert.Contains(t, err.Error(), "staticrypt-3")
}

func TestPatchHost(t *testing.T) {
	out, err := StatiCrypt3.PatchHost(hostDoc, HostParams{
		Salt:        "00112233445566778899aabbccddeeff",
		ArtifactURL: "data/data.enc",
	})
	require.NoError(t, err)

	assert.Contains(t, out, `const salt = "00112233445566778899aabbccddeeff";`)
	assert.Contains(t, out, `const storageKey = "staticrypt_passphrase";`)
	assert.Contains(t, out, `fetch("data/data.enc", { cache: "no-store" })`)
	assert.Contains(t, out, "window.dashlock.decrypt(payload)")
	assert.NotContains(t, out, `fetch("data/data.json")`)
	assert.Contains(t, out, "function render(data)", "code after the loader must be kept")
	assert.Contains(t, out, "loadData().then(render);")

	script := strings.Index(out, "window.dashlock = ")
	head := strings.Index(out, "</head>")
	assert.Greater(t, script, 0)
	assert.Less(t, script, head, "decrypt script must be inserted before the marker")
	assert.Equal(t, 1, strings.Count(out, "async function loadData()"))
}

func TestPatchHost_CustomParams(t *testing.T) {
	doc := strings.ReplaceAll(hostDoc, "loadData", "fetchMetrics")
	out, err := StatiCrypt3.PatchHost(doc, HostParams{
		Salt:        "00112233445566778899aabbccddeeff",
		ArtifactURL: `enc/"quoted".enc`,
		LoaderFunc:  "fetchMetrics",
		StorageKey:  "gate_key",
	})
	require.NoError(t, err)
	assert.Contains(t, out, `fetch("enc/\"quoted\".enc"`)
	assert.Contains(t, out, `const storageKey = "gate_key";`)
	assert.Contains(t, out, "async function fetchMetrics()")
}

const indentedHostDoc = `<html>
<head></head>
<body>
  <script>
    async function loadData() {
      const response = await fetch("data/data.json", { headers: { "Accept": "application/json" } });
      if (!response.ok) {
        throw new Error("status } " + response.status); // unbalanced } in a comment
      }
      /* { */
      return response.json();
    }

    function render(data) {
      document.body.textContent = JSON.stringify(data);
    }

    loadData().then(render);
  </script>
  <script>
function other() {
  return 1;
}
  </script>
</body>
</html>
`

func TestPatchHost_Indented(t *testing.T) {
	out, err := StatiCrypt3.PatchHost(indentedHostDoc, HostParams{
		Salt:        "00112233445566778899aabbccddeeff",
		ArtifactURL: "data/data.enc",
	})
	require.NoError(t, err)

	assert.NotContains(t, out, `fetch("data/data.json"`)
	assert.NotContains(t, out, "unbalanced } in a comment")
	assert.Contains(t, out, `fetch("data/data.enc", { cache: "no-store" })`)
	assert.Contains(t, out, "    function render(data) {\n      document.body.textContent")
	assert.Contains(t, out, "    loadData().then(render);\n  </script>")
	assert.Contains(t, out, "function other() {\n  return 1;\n}")
	assert.Equal(t, 3, strings.Count(out, "</script>"), "both host scripts and the decrypt script must be closed")
}

func TestPatchHost_AmbiguousLoader(t *testing.T) {
	params := HostParams{Salt: "00112233445566778899aabbccddeeff", ArtifactURL: "data.enc"}
	doc := strings.Replace(indentedHostDoc, "function other()", "function loadData()", 1)
	_, err := StatiCrypt3.PatchHost(doc, params)
	assert.ErrorIs(t, err, ErrPatchPointNotFound)
	assert.Contains(t, err.Error(), "2 definitions")

	doc = strings.ReplaceAll(hostDoc, "}", "")
	_, err = StatiCrypt3.PatchHost(doc, params)
	assert.ErrorIs(t, err, ErrPatchPointNotFound)
	assert.Contains(t, err.Error(), "unbalanced")
}

func TestPatchHost_EscapesScriptValues(t *testing.T) {
	out, err := StatiCrypt3.PatchHost(hostDoc, HostParams{
		Salt:        "00112233445566778899aabbccddeeff",
		ArtifactURL: `data/</script><script>alert(1)</script>.enc`,
		StorageKey:  `key\a'b`,
	})
	require.NoError(t, err)
	assert.NotContains(t, out, "alert(1)</script>")
	assert.Contains(t, out, `fetch("data/\u003C/script\u003E\u003Cscript\u003Ealert(1)\u003C/script\u003E.enc"`)
	assert.Contains(t, out, `const storageKey = "key\\a\'b";`)
}

func TestPatchHost_Neg(t *testing.T) {
	params := HostParams{Salt: "00112233445566778899aabbccddeeff", ArtifactURL: "data.enc"}

	_, err := StatiCrypt3.PatchHost(strings.ReplaceAll(hostDoc, "loadData", "getData"), params)
	assert.ErrorIs(t, err, ErrPatchPointNotFound)
	assert.Contains(t, err.Error(), "loadData")
	assert.Contains(t, err.Error(), "staticrypt-3")

	_, err = StatiCrypt3.PatchHost(strings.ReplaceAll(hostDoc, "</head>", ""), params)
	assert.ErrorIs(t, err, ErrPatchPointNotFound)

	bad := params
	bad.LoaderFunc = "load(); evil"
	_, err = StatiCrypt3.PatchHost(hostDoc, bad)
	assert.Error(t, err)

	bad = params
	bad.ArtifactURL = ""
	_, err = StatiCrypt3.PatchHost(hostDoc, bad)
	assert.Error(t, err)
}

func TestPostProcess(t *testing.T) {
	out, err := StatiCrypt3.PostProcess(gateDoc, Branding{Image: "img/logo.png", Alt: `Team "Metrics"`})
	require.NoError(t, err)
	assert.Contains(t, out, `<img class="dashlock-brand" src="img/logo.png" alt="Team &#34;Metrics&#34;">`+"\n"+`<p class="staticrypt-title">`)
	assert.Contains(t, out, "if (true) {")
	assert.NotContains(t, out, "isRememberChecked")

	out, err = StatiCrypt3.PostProcess(gateDoc, Branding{})
	require.NoError(t, err)
	assert.NotContains(t, out, "dashlock-brand")
	assert.Contains(t, out, "if (true) {")
}

func TestPostProcess_Neg(t *testing.T) {
	_, err := StatiCrypt3.PostProcess(strings.ReplaceAll(gateDoc, "staticrypt-title", "title"), Branding{Image: "logo.png"})
	assert.ErrorIs(t, err, ErrPatchPointNotFound)

	_, err = StatiCrypt3.PostProcess(strings.ReplaceAll(gateDoc, "isRememberChecked", "remember"), Branding{})
	assert.ErrorIs(t, err, ErrPatchPointNotFound)
	assert.Contains(t, err.Error(), "remember gate")
}
