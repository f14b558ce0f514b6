// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package earthplugin

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/net/html"
)

const testPage = `<!DOCTYPE html><html><head><title>Globe</title><meta name="dev-only" content="1"></head><body><div id="app"></div></body></html>`

func parsePage(t *testing.T, page string) *html.Node {
	t.Helper()
	doc, err := htmlquery.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("Failed to parse HTML: %v", err)
	}
	return doc
}

func renderPage(t *testing.T, doc *html.Node) string {
	t.Helper()
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		t.Fatalf("Failed to render HTML: %v", err)
	}
	return buf.String()
}

// elementOrder returns the tag names of the element children of the node at xpath.
func elementOrder(t *testing.T, doc *html.Node, xpath string) []string {
	t.Helper()
	parent := htmlquery.FindOne(doc, xpath)
	if parent == nil {
		t.Fatalf("No node at %s", xpath)
	}
	var names []string
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			names = append(names, c.Data)
		}
	}
	return names
}

func TestInjectTags(t *testing.T) {
	doc := parsePage(t, testPage)
	tags := []HtmlTagDescriptor{
		stylesheetTag("/cesium/Widgets/widgets.css"),
		globalAssignTag("CESIUM_BASE_URL", "/cesium/"),
		scriptTag("/cesium/Cesium.js"),
		{Tag: "base", Attrs: []html.Attribute{{Key: "href", Val: "/"}}, InjectTo: InjectHeadPrepend},
		{Tag: "meta", Attrs: []html.Attribute{{Key: "name", Val: "second"}}, InjectTo: InjectHeadPrepend},
		{Tag: "noscript", InjectTo: InjectBodyPrepend},
		{Tag: "footer", InjectTo: InjectBody},
	}
	if err := injectTags(doc, tags); err != nil {
		t.Fatalf("injectTags failed: %v", err)
	}

	head := strings.Join(elementOrder(t, doc, "//head"), ",")
	if head != "base,meta,title,meta,link,script,script" {
		t.Errorf("Unexpected head order %s", head)
	}
	body := strings.Join(elementOrder(t, doc, "//body"), ",")
	if body != "noscript,div,footer" {
		t.Errorf("Unexpected body order %s", body)
	}

	out := renderPage(t, doc)
	if !strings.Contains(out, `<script>window["CESIUM_BASE_URL"] = "/cesium/"</script>`) {
		t.Errorf("Expected the global assignment to be rendered, got %s", out)
	}
	if strings.Index(out, "widgets.css") > strings.Index(out, "Cesium.js") {
		t.Error("Expected the stylesheet before the entry script")
	}
}

func TestInjectTagsMissingInjectPoint(t *testing.T) {
	// A detached fragment has neither head nor body
	doc := &html.Node{Type: html.DocumentNode}
	err := injectTags(doc, []HtmlTagDescriptor{scriptTag("/cesium/Cesium.js")})
	if err == nil || !strings.Contains(err.Error(), "no element for inject point") {
		t.Errorf("Expected inject point error, got %v", err)
	}
	if err := injectTags(doc, nil); err != nil {
		t.Errorf("Expected no error without tags, got %v", err)
	}
}

func TestEarthTagProcessor(t *testing.T) {
	buildCtx := testBuildContext(t)
	buildCtx.Targets = resolvedTargets(t, true, TargetInput{Preset: CesiumPreset})

	doc := parsePage(t, testPage)
	if err := NewEarthTagProcessor()(doc, &api.BuildResult{}, buildCtx, nil); err != nil {
		t.Fatalf("processor failed: %v", err)
	}
	scripts := htmlquery.Find(doc, "//head/script[@src]")
	if len(scripts) != 1 || htmlquery.SelectAttr(scripts[0], "src") != "/cesium/Cesium.js" {
		t.Errorf("Expected the Cesium entry script, got %d scripts", len(scripts))
	}
}

func TestHtmlProcessor(t *testing.T) {
	buildCtx := testBuildContext(t)
	buildCtx.IndexHtml = filepath.Join(buildCtx.OutDir, "index.html")
	result := &api.BuildResult{Metafile: `{"outputs":{
		"dist/main-X7A2.js":{"entryPoint":"src/main.ts","cssBundle":"dist/main-X7A2.css"},
		"dist/chunk-Q1.js":{},
		"dist/main-X7A2.css":{},
		"dist/theme.css":{"entryPoint":"src/theme.css"}
	}}`}

	tests := []struct {
		name    string
		options HtmlProcessorOptions
		want    []string
	}{
		{
			name: "default_builders",
			want: []string{"link:main-X7A2.css", "script:main-X7A2.js", "link:theme.css"},
		},
		{
			name: "custom_builders",
			options: HtmlProcessorOptions{
				ScriptAttrBuilder: func(filename, htmlFile string) []html.Attribute {
					return []html.Attribute{{Key: "src", Val: "/static/" + filepath.Base(filename)}}
				},
				CssAttrBuilder: func(filename, htmlFile string) []html.Attribute {
					return []html.Attribute{{Key: "href", Val: "/static/" + filepath.Base(filename)}}
				},
			},
			want: []string{"link:/static/main-X7A2.css", "script:/static/main-X7A2.js", "link:/static/theme.css"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			doc := parsePage(t, testPage)
			if err := NewHtmlProcessor(test.options)(doc, result, buildCtx, nil); err != nil {
				t.Fatalf("processor failed: %v", err)
			}

			var got []string
			head := htmlquery.FindOne(doc, "//head")
			for n := head.FirstChild; n != nil; n = n.NextSibling {
				if n.Data == "link" || n.Data == "script" {
					got = append(got, n.Data+":"+htmlquery.SelectAttr(n, "href")+htmlquery.SelectAttr(n, "src"))
				}
			}
			if strings.Join(got, " ") != strings.Join(test.want, " ") {
				t.Errorf("Expected %v, got %v", test.want, got)
			}
		})
	}
}

func TestHtmlProcessorMetafileErrors(t *testing.T) {
	buildCtx := testBuildContext(t)
	processor := NewHtmlProcessor(HtmlProcessorOptions{})

	err := processor(parsePage(t, testPage), &api.BuildResult{}, buildCtx, nil)
	if err == nil || !strings.Contains(err.Error(), "metafile is empty") {
		t.Errorf("Expected empty metafile error, got %v", err)
	}
	err = processor(parsePage(t, testPage), &api.BuildResult{Metafile: "{"}, buildCtx, nil)
	if err == nil || !strings.Contains(err.Error(), "failed to parse metafile") {
		t.Errorf("Expected parse error, got %v", err)
	}
}

func writeSourcePage(t *testing.T, buildCtx *BuildContext, content []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(buildCtx.Root, "index.html"), content, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestTransformIndexHtml(t *testing.T) {
	buildCtx := testBuildContext(t)
	buildCtx.Targets = resolvedTargets(t, true, TargetInput{Preset: CesiumPreset})
	buildCtx.IndexHtml = filepath.Join(buildCtx.OutDir, "index.html")
	writeSourcePage(t, buildCtx, []byte(testPage))

	opts := newOptions()
	opts.indexHtmlOptions = IndexHtmlOptions{
		SourceFile:      "index.html",
		OutFile:         "dist/index.html",
		RemoveTagXPaths: []string{`//meta[@name="dev-only"]`},
	}
	build := &api.PluginBuild{InitialOptions: &api.BuildOptions{Write: true}}
	result := &api.BuildResult{Metafile: `{"outputs":{"dist/main.js":{"entryPoint":"src/main.ts"}}}`}

	if err := transformIndexHtml(opts, buildCtx, result, build); err != nil {
		t.Fatalf("transformIndexHtml failed: %v", err)
	}
	out, err := os.ReadFile(buildCtx.IndexHtml)
	if err != nil {
		t.Fatalf("Expected output html: %v", err)
	}
	page := string(out)
	for _, want := range []string{`href="/cesium/Widgets/widgets.css"`, `src="/cesium/Cesium.js"`, `src="main.js"`, "<title>Globe</title>"} {
		if !strings.Contains(page, want) {
			t.Errorf("Expected %s in output, got %s", want, page)
		}
	}
	if strings.Contains(page, "dev-only") {
		t.Error("Expected the dev-only meta tag to be removed")
	}
	// Library tags come before the application bundle
	if strings.Index(page, "Cesium.js") > strings.Index(page, `src="main.js"`) {
		t.Error("Expected the library script before the application script")
	}
}

func TestTransformIndexHtmlCustomProcessors(t *testing.T) {
	buildCtx := testBuildContext(t)
	buildCtx.IndexHtml = filepath.Join(buildCtx.OutDir, "index.html")
	writeSourcePage(t, buildCtx, []byte(testPage))

	called := 0
	opts := newOptions()
	opts.indexHtmlOptions = IndexHtmlOptions{
		SourceFile: "index.html",
		OutFile:    "dist/index.html",
		IndexHtmlProcessors: []IndexHtmlProcessor{
			func(doc *html.Node, result *api.BuildResult, buildCtx *BuildContext, build *api.PluginBuild) error {
				called++
				return injectTags(doc, []HtmlTagDescriptor{{Tag: "meta", Attrs: []html.Attribute{{Key: "name", Val: "custom"}}, InjectTo: InjectHead}})
			},
		},
	}
	build := &api.PluginBuild{InitialOptions: &api.BuildOptions{Write: true}}

	// The default chain is replaced, so no metafile is needed
	if err := transformIndexHtml(opts, buildCtx, &api.BuildResult{}, build); err != nil {
		t.Fatalf("transformIndexHtml failed: %v", err)
	}
	out, _ := os.ReadFile(buildCtx.IndexHtml)
	if called != 1 || !strings.Contains(string(out), `name="custom"`) {
		t.Errorf("Expected the custom processor to run once, called %d: %s", called, out)
	}
}

func TestTransformIndexHtmlErrors(t *testing.T) {
	errProcessor := errors.New("processor failed")
	tests := []struct {
		name    string
		html    IndexHtmlOptions
		source  bool
		wantErr string
	}{
		{
			name:    "missing_out_file",
			html:    IndexHtmlOptions{SourceFile: "index.html"},
			source:  true,
			wantErr: "outFile or sourceFile is empty",
		},
		{
			name:    "missing_source",
			html:    IndexHtmlOptions{SourceFile: "missing.html", OutFile: "dist/index.html"},
			wantErr: "failed to open source file",
		},
		{
			name: "invalid_xpath",
			html: IndexHtmlOptions{
				SourceFile:          "index.html",
				OutFile:             "dist/index.html",
				RemoveTagXPaths:     []string{"//meta[@name="},
				IndexHtmlProcessors: []IndexHtmlProcessor{func(*html.Node, *api.BuildResult, *BuildContext, *api.PluginBuild) error { return nil }},
			},
			source:  true,
			wantErr: "invalid xpath",
		},
		{
			name: "processor_error",
			html: IndexHtmlOptions{
				SourceFile: "index.html",
				OutFile:    "dist/index.html",
				IndexHtmlProcessors: []IndexHtmlProcessor{func(*html.Node, *api.BuildResult, *BuildContext, *api.PluginBuild) error {
					return errProcessor
				}},
			},
			source:  true,
			wantErr: "processor failed",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			buildCtx := testBuildContext(t)
			buildCtx.IndexHtml = filepath.Join(buildCtx.OutDir, "index.html")
			if test.source {
				writeSourcePage(t, buildCtx, []byte(testPage))
			}
			opts := newOptions()
			opts.indexHtmlOptions = test.html
			build := &api.PluginBuild{InitialOptions: &api.BuildOptions{Write: true}}

			err := transformIndexHtml(opts, buildCtx, &api.BuildResult{}, build)
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Expected error containing %q, got %v", test.wantErr, err)
			}
		})
	}
}

func TestTransformIndexHtmlSkipped(t *testing.T) {
	buildCtx := testBuildContext(t)
	buildCtx.IndexHtml = filepath.Join(buildCtx.OutDir, "index.html")
	opts := newOptions()
	opts.indexHtmlOptions = IndexHtmlOptions{SourceFile: "missing.html", OutFile: "dist/index.html"}

	// Nothing is written when esbuild does not write to disk
	build := &api.PluginBuild{InitialOptions: &api.BuildOptions{Write: false}}
	if err := transformIndexHtml(opts, buildCtx, &api.BuildResult{}, build); err != nil {
		t.Errorf("Expected skip without error, got %v", err)
	}
	if _, err := os.Stat(buildCtx.IndexHtml); !os.IsNotExist(err) {
		t.Errorf("Expected no output html, got %v", err)
	}
}

func TestDetectAndConvertToUTF8(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		expected string
	}{
		{
			name:     "utf8_content",
			content:  []byte("<html><head><title>地球</title></head></html>"),
			expected: "<html><head><title>地球</title></head></html>",
		},
		{
			name:     "declared_charset",
			content:  []byte("<html><head><meta charset=\"windows-1252\"></head><body>caf\xe9</body></html>"),
			expected: "<html><head><meta charset=\"windows-1252\"></head><body>café</body></html>",
		},
		{
			name:     "empty_content",
			content:  nil,
			expected: "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			utf8Reader, err := detectAndConvertToUTF8(bytes.NewReader(test.content))
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			result, err := io.ReadAll(utf8Reader)
			if err != nil {
				t.Fatalf("Expected no error reading, got: %v", err)
			}
			if string(result) != test.expected {
				t.Errorf("Expected '%s', got '%s'", test.expected, string(result))
			}
		})
	}
}

// failingReader always returns an error
type failingReader struct{}

func (f *failingReader) Read(p []byte) (n int, err error) {
	return 0, fmt.Errorf("read error")
}

func TestDetectAndConvertToUTF8ReadError(t *testing.T) {
	if _, err := detectAndConvertToUTF8(&failingReader{}); err == nil {
		t.Error("Expected error from failing reader, got nil")
	}
}

func TestRelativeTo(t *testing.T) {
	tests := []struct {
		filename, htmlFile, want string
	}{
		{"/p/dist/main.js", "/p/dist/index.html", "main.js"},
		{"/p/dist/assets/main.js", "/p/dist/index.html", "assets/main.js"},
		{"/p/dist/main.js", "/p/dist/pages/index.html", "../main.js"},
	}
	for _, test := range tests {
		if got := relativeTo(filepath.FromSlash(test.filename), filepath.FromSlash(test.htmlFile)); got != test.want {
			t.Errorf("relativeTo(%s, %s) = %s, want %s", test.filename, test.htmlFile, got, test.want)
		}
	}
}
