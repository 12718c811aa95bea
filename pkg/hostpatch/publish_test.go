package hostpatch

import (
	"context"
	"errors"
	"github.com/saylorsolutions/dashlock/pkg/gatecrypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

// fakeGenerator wraps the staged page in gateDoc, the way StatiCrypt embeds the encrypted page in its template.
type fakeGenerator struct {
	calls  []Request
	staged string
	output string
	err    error
}

func (g *fakeGenerator) Generate(_ context.Context, req Request) (string, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return "", g.err
	}
	staged, err := os.ReadFile(req.Input)
	if err != nil {
		return "", err
	}
	g.staged = string(staged)
	out := filepath.Join(req.OutputDir, filepath.Base(req.Input))
	body := gateDoc
	if len(g.output) > 0 {
		body = g.output
	}
	if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

func testPublisher(t *testing.T, gen Generator) *Publisher {
	t.Helper()
	dir := t.TempDir()
	host := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(host, []byte(hostDoc), 0o644))
	return &Publisher{
		HostDocument: host,
		OutputDir:    filepath.Join(dir, "encrypted"),
		ConfigPath:   filepath.Join(dir, ".staticrypt.json"),
		Patch:        StatiCrypt3,
		Host:         HostParams{ArtifactURL: "data/data.enc"},
		Branding:     Branding{Image: "logo.png", Alt: "Logo"},
		Template:     Template{Title: "Metrics"},
		Generator:    gen,
	}
}

func TestPublisher_Publish(t *testing.T) {
	const salt gatecrypt.Salt = "00112233445566778899aabbccddeeff"
	gen := new(fakeGenerator)
	p := testPublisher(t, gen)

	out, err := p.Publish(context.Background(), "s3cre+", salt)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.OutputDir, "index.html"), out)

	require.Len(t, gen.calls, 1)
	req := gen.calls[0]
	assert.Equal(t, gatecrypt.Password("s3cre+"), req.Password)
	assert.Equal(t, salt, req.Salt)
	assert.Equal(t, p.ConfigPath, req.ConfigPath)
	assert.Equal(t, "Metrics", req.Template.Title)
	assert.NotEqual(t, filepath.Dir(p.HostDocument), filepath.Dir(req.Input), "generator must get a staged copy")
	assert.Contains(t, gen.staged, string(salt))
	assert.Contains(t, gen.staged, `fetch("data/data.enc"`)
	assert.NotEqual(t, p.OutputDir, req.OutputDir, "generator must write to a staging directory")

	_, err = os.Stat(req.Input)
	assert.True(t, errors.Is(err, os.ErrNotExist), "staging directory must be removed")

	host, err := os.ReadFile(p.HostDocument)
	require.NoError(t, err)
	assert.Equal(t, hostDoc, string(host), "host document must not be modified")

	final, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(final), `class="dashlock-brand"`)
	assert.Contains(t, string(final), "if (true)")
}

func TestPublisher_Publish_Neg(t *testing.T) {
	const salt gatecrypt.Salt = "00112233445566778899aabbccddeeff"

	gen := &fakeGenerator{err: ErrExternalToolFailed}
	_, err := testPublisher(t, gen).Publish(context.Background(), "pass", salt)
	assert.ErrorIs(t, err, ErrExternalToolFailed)

	gen = &fakeGenerator{output: "<html>unexpected</html>"}
	p := testPublisher(t, gen)
	_, err = p.Publish(context.Background(), "pass", salt)
	assert.ErrorIs(t, err, ErrPatchPointNotFound)
	_, statErr := os.Stat(filepath.Join(p.OutputDir, "index.html"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "unprocessed output must not be published")

	gen = new(fakeGenerator)
	p = testPublisher(t, gen)
	require.NoError(t, os.WriteFile(p.HostDocument, []byte("<html></html>"), 0o644))
	_, err = p.Publish(context.Background(), "pass", salt)
	assert.ErrorIs(t, err, ErrPatchPointNotFound)
	assert.Empty(t, gen.calls, "generator must not run when the host document can't be patched")

	p = testPublisher(t, new(fakeGenerator))
	p.HostDocument = filepath.Join(t.TempDir(), "missing.html")
	_, err = p.Publish(context.Background(), "pass", salt)
	assert.Error(t, err)

	_, err = (&Publisher{}).Publish(context.Background(), "pass", salt)
	assert.Error(t, err)
}

func TestPublisher_Publish_KeepsPreviousPage(t *testing.T) {
	const (
		salt     gatecrypt.Salt = "00112233445566778899aabbccddeeff"
		previous                = "<html>previous gate</html>"
	)
	for name, gen := range map[string]*fakeGenerator{
		"generator fails":         {err: ErrExternalToolFailed},
		"generator output drifts": {output: "<html>unexpected</html>"},
	} {
		t.Run(name, func(t *testing.T) {
			p := testPublisher(t, gen)
			page := filepath.Join(p.OutputDir, "index.html")
			require.NoError(t, os.MkdirAll(p.OutputDir, 0o755))
			require.NoError(t, os.WriteFile(page, []byte(previous), 0o644))

			_, err := p.Publish(context.Background(), "pass", salt)
			assert.Error(t, err)
			data, err := os.ReadFile(page)
			require.NoError(t, err, "previous page must survive a failed publish")
			assert.Equal(t, previous, string(data))
		})
	}
}
