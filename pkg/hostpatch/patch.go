package hostpatch

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"github.com/saylorsolutions/dashlock/pkg/gatecrypt"
	"html"
	"regexp"
	"sort"
	"strings"
	"text/template"
)

const (
	DefaultLoaderFunc = "loadData"
	DefaultStorageKey = "staticrypt_passphrase"
)

var (
	ErrPatchPointNotFound = errors.New("patch point not found")
	ErrUnknownPatchSet    = errors.New("unknown patch set version")
)

var (
	//go:embed decrypt.js.tmpl
	decryptText     string
	decryptTemplate = template.Must(template.New("decrypt").Parse(decryptText))

	//go:embed loader.js.tmpl
	loaderText     string
	loaderTemplate = template.Must(template.New("loader").Parse(loaderText))

	validFuncName = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
)

// PatchSet groups the textual contracts with the host document and the generator output.
type PatchSet struct {
	Version string
	// ScriptMarker is the text the decrypt script is inserted before.
	ScriptMarker string
	// LoaderPattern is a regex format string, %s is replaced with the quoted loader function name.
	// It must match the function header up to and including the opening brace of its body.
	// The body extends to the matching closing brace.
	LoaderPattern string
	// BrandingMarker is the text in the generator output that the branding image is inserted before.
	BrandingMarker string
	// RememberGate is the condition in the generator output that decides whether the key is stored.
	RememberGate string
	// RememberGateReplacement replaces every RememberGate occurrence.
	RememberGateReplacement string
}

// StatiCrypt3 matches StatiCrypt 3.x output.
var StatiCrypt3 = PatchSet{
	Version:                 "staticrypt-3",
	ScriptMarker:            "</head>",
	LoaderPattern:           `\b(?:async\s+)?function\s+%s\s*\([^)]*\)\s*\{`,
	BrandingMarker:          `<p class="staticrypt-title">`,
	RememberGate:            "if (isRememberEnabled && isRememberChecked)",
	RememberGateReplacement: "if (true)",
}

var patchSets = map[string]PatchSet{
	StatiCrypt3.Version: StatiCrypt3,
}

// LookupPatchSet returns the PatchSet registered for version.
func LookupPatchSet(version string) (PatchSet, error) {
	ps, ok := patchSets[version]
	if !ok {
		known := make([]string, 0, len(patchSets))
		for v := range patchSets {
			known = append(known, v)
		}
		sort.Strings(known)
		return PatchSet{}, fmt.Errorf("%w '%s', known versions: %s", ErrUnknownPatchSet, version, strings.Join(known, ", "))
	}
	return ps, nil
}

// HostParams are the values embedded into the host document.
type HostParams struct {
	Salt        gatecrypt.Salt
	ArtifactURL string
	// LoaderFunc is the name of the data loading function to replace. Defaults to DefaultLoaderFunc.
	LoaderFunc string
	// StorageKey is the local storage key the gate stores the derived key under. Defaults to DefaultStorageKey.
	StorageKey string
}

func (p HostParams) withDefaults() HostParams {
	if len(p.LoaderFunc) == 0 {
		p.LoaderFunc = DefaultLoaderFunc
	}
	if len(p.StorageKey) == 0 {
		p.StorageKey = DefaultStorageKey
	}
	return p
}

type scriptParams struct {
	HostParams
	Version string
}

func (ps PatchSet) notFound(point string) error {
	return fmt.Errorf("%w: %s (patch set %s)", ErrPatchPointNotFound, point, ps.Version)
}

// PatchHost inserts the decrypt script and replaces the data loading function of the host document.
func (ps PatchSet) PatchHost(doc string, params HostParams) (string, error) {
	params = params.withDefaults()
	if len(params.ArtifactURL) == 0 {
		return "", errors.New("artifact URL is required")
	}
	if !validFuncName.MatchString(params.LoaderFunc) {
		return "", fmt.Errorf("invalid loader function name '%s'", params.LoaderFunc)
	}
	data := scriptParams{HostParams: params, Version: ps.Version}

	loaderRe, err := regexp.Compile(fmt.Sprintf(ps.LoaderPattern, regexp.QuoteMeta(params.LoaderFunc)))
	if err != nil {
		return "", fmt.Errorf("invalid loader pattern in patch set %s: %w", ps.Version, err)
	}
	loc, problem := findLoader(doc, loaderRe)
	if len(problem) > 0 {
		return "", ps.notFound(fmt.Sprintf("data loader function '%s' (%s)", params.LoaderFunc, problem))
	}
	var loader bytes.Buffer
	if err := loaderTemplate.Execute(&loader, data); err != nil {
		return "", err
	}
	doc = doc[:loc[0]] + strings.TrimRight(loader.String(), "\n") + doc[loc[1]:]

	idx := strings.Index(doc, ps.ScriptMarker)
	if idx < 0 {
		return "", ps.notFound(fmt.Sprintf("script marker '%s'", ps.ScriptMarker))
	}
	var script bytes.Buffer
	if err := decryptTemplate.Execute(&script, data); err != nil {
		return "", err
	}
	return doc[:idx] + script.String() + doc[idx:], nil
}

// findLoader returns the span of the single function definition whose header matches re.
// If there isn't exactly one, or its body isn't closed, the problem is described instead.
func findLoader(doc string, re *regexp.Regexp) ([]int, string) {
	matches := re.FindAllStringIndex(doc, -1)
	switch len(matches) {
	case 0:
		return nil, "no definition"
	case 1:
	default:
		return nil, fmt.Sprintf("%d definitions", len(matches))
	}
	start, open := matches[0][0], matches[0][1]-1
	end := matchingBrace(doc, open)
	if end < 0 {
		return nil, "unbalanced function body"
	}
	return []int{start, end + 1}, ""
}

// matchingBrace returns the index of the '}' closing the '{' at open, or -1.
// String literals and comments are skipped.
func matchingBrace(doc string, open int) int {
	depth := 0
	for i := open; i < len(doc); i++ {
		switch c := doc[i]; c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		case '"', '\'', '`':
			for i++; i < len(doc) && doc[i] != c; i++ {
				if doc[i] == '\\' {
					i++
				}
			}
		case '/':
			if i+1 >= len(doc) {
				continue
			}
			switch doc[i+1] {
			case '/':
				if nl := strings.IndexByte(doc[i:], '\n'); nl >= 0 {
					i += nl
				} else {
					return -1
				}
			case '*':
				if cl := strings.Index(doc[i+2:], "*/"); cl >= 0 {
					i += cl + 3
				} else {
					return -1
				}
			}
		}
	}
	return -1
}

// Branding is an optional image shown on the password gate.
type Branding struct {
	Image string
	Alt   string
}

// PostProcess adds branding to the generator output and makes the gate always store the derived key.
// The dashboard reads that key to decrypt its data, so it can't depend on the "remember me" checkbox.
func (ps PatchSet) PostProcess(out string, brand Branding) (string, error) {
	if len(brand.Image) > 0 {
		idx := strings.Index(out, ps.BrandingMarker)
		if idx < 0 {
			return "", ps.notFound(fmt.Sprintf("branding marker '%s'", ps.BrandingMarker))
		}
		img := fmt.Sprintf(`<img class="dashlock-brand" src="%s" alt="%s">`+"\n", html.EscapeString(brand.Image), html.EscapeString(brand.Alt))
		out = out[:idx] + img + out[idx:]
	}

	if !strings.Contains(out, ps.RememberGate) {
		return "", ps.notFound(fmt.Sprintf("remember gate '%s'", ps.RememberGate))
	}
	return strings.ReplaceAll(out, ps.RememberGate, ps.RememberGateReplacement), nil
}
