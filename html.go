// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package earthplugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/antchfx/htmlquery"
	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// HtmlProcessorOptions holds builder functions for script and CSS tag attributes.
type HtmlProcessorOptions struct {
	ScriptAttrBuilder func(filename string, htmlFile string) []html.Attribute // JS script tag attribute builder
	CssAttrBuilder    func(filename string, htmlFile string) []html.Attribute // CSS link tag attribute builder
}

// metafile is the part of esbuild's metafile the entry processor reads.
type metafile struct {
	Outputs map[string]struct {
		EntryPoint string `json:"entryPoint"`
		CssBundle  string `json:"cssBundle"`
	} `json:"outputs"`
}

// relativeTo returns filename relative to the directory of htmlFile, in URL form.
func relativeTo(filename, htmlFile string) string {
	relPath, err := filepath.Rel(filepath.Dir(htmlFile), filename)
	if err != nil || relPath == "" {
		return filepath.ToSlash(filename)
	}
	return filepath.ToSlash(relPath)
}

// NewEarthTagProcessor returns an IndexHtmlProcessor that injects the tags of every
// integrated target, renderer first.
func NewEarthTagProcessor() IndexHtmlProcessor {
	return func(doc *html.Node, result *api.BuildResult, buildCtx *BuildContext, build *api.PluginBuild) error {
		return injectTags(doc, EmitAllHtmlTags(buildCtx))
	}
}

// NewHtmlProcessor returns an IndexHtmlProcessor that injects the JS and CSS outputs
// of the build's entry points.
func NewHtmlProcessor(htmlProcessorOptions HtmlProcessorOptions) IndexHtmlProcessor {
	if htmlProcessorOptions.ScriptAttrBuilder == nil {
		htmlProcessorOptions.ScriptAttrBuilder = func(filename string, htmlFile string) []html.Attribute {
			return []html.Attribute{
				{Key: "crossorigin", Val: ""},
				{Key: "type", Val: "module"},
				{Key: "src", Val: relativeTo(filename, htmlFile)},
			}
		}
	}
	if htmlProcessorOptions.CssAttrBuilder == nil {
		htmlProcessorOptions.CssAttrBuilder = func(filename string, htmlFile string) []html.Attribute {
			return []html.Attribute{
				{Key: "crossorigin", Val: ""},
				{Key: "rel", Val: "stylesheet"},
				{Key: "href", Val: relativeTo(filename, htmlFile)},
			}
		}
	}

	return func(doc *html.Node, result *api.BuildResult, buildCtx *BuildContext, build *api.PluginBuild) error {
		if result.Metafile == "" {
			return fmt.Errorf("metafile is empty")
		}
		var meta metafile
		if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
			return fmt.Errorf("failed to parse metafile: %w", err)
		}

		htmlFile := buildCtx.IndexHtml
		if htmlFile == "" {
			htmlFile = filepath.Join(buildCtx.OutDir, "index.html")
		}

		outputs := make([]string, 0, len(meta.Outputs))
		for out := range meta.Outputs {
			outputs = append(outputs, out)
		}
		sort.Strings(outputs)

		var tags []HtmlTagDescriptor
		for _, out := range outputs {
			info := meta.Outputs[out]
			if info.EntryPoint == "" {
				continue // Skip chunks and assets not generated from entry points
			}
			outputFile := buildCtx.absPath(out)

			switch filepath.Ext(outputFile) {
			case ".js":
				if info.CssBundle != "" {
					tags = append(tags, HtmlTagDescriptor{
						Tag:      "link",
						Attrs:    htmlProcessorOptions.CssAttrBuilder(buildCtx.absPath(info.CssBundle), htmlFile),
						InjectTo: InjectHead,
					})
				}
				tags = append(tags, HtmlTagDescriptor{
					Tag:      "script",
					Attrs:    htmlProcessorOptions.ScriptAttrBuilder(outputFile, htmlFile),
					InjectTo: InjectHead,
				})
			case ".css":
				tags = append(tags, HtmlTagDescriptor{
					Tag:      "link",
					Attrs:    htmlProcessorOptions.CssAttrBuilder(outputFile, htmlFile),
					InjectTo: InjectHead,
				})
			}
		}
		return injectTags(doc, tags)
	}
}

// injectTags places the tags into the document at their inject points, keeping their order.
func injectTags(doc *html.Node, tags []HtmlTagDescriptor) error {
	if len(tags) == 0 {
		return nil
	}
	headNode := htmlquery.FindOne(doc, "//head")
	bodyNode := htmlquery.FindOne(doc, "//body")

	// Prepended tags go before the children the element had before injection
	anchors := map[*html.Node]*html.Node{}
	if headNode != nil {
		anchors[headNode] = headNode.FirstChild
	}
	if bodyNode != nil {
		anchors[bodyNode] = bodyNode.FirstChild
	}

	for _, tag := range tags {
		parent, prepend := headNode, false
		switch tag.InjectTo {
		case InjectHeadPrepend:
			prepend = true
		case InjectBody:
			parent = bodyNode
		case InjectBodyPrepend:
			parent, prepend = bodyNode, true
		}
		if parent == nil {
			return fmt.Errorf("html document has no element for inject point %q", tag.InjectTo)
		}

		node := tag.Node()
		newline := &html.Node{Type: html.TextNode, Data: "\n"}
		if prepend {
			parent.InsertBefore(node, anchors[parent])
			parent.InsertBefore(newline, anchors[parent])
		} else {
			parent.AppendChild(node)
			parent.AppendChild(newline)
		}
	}
	return nil
}

// transformIndexHtml reads the source html, runs the processor chain and writes the output html.
func transformIndexHtml(opts *Options, buildCtx *BuildContext, result *api.BuildResult, build *api.PluginBuild) error {
	htmlOptions := opts.indexHtmlOptions
	if htmlOptions.SourceFile == "" || !build.InitialOptions.Write {
		return nil
	}
	if htmlOptions.OutFile == "" {
		return fmt.Errorf("outFile or sourceFile is empty")
	}

	processors := htmlOptions.IndexHtmlProcessors
	if len(processors) == 0 {
		processors = []IndexHtmlProcessor{
			NewEarthTagProcessor(),
			NewHtmlProcessor(HtmlProcessorOptions{}),
		}
	}

	sourceFile, err := os.Open(buildCtx.absPath(htmlOptions.SourceFile))
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	utf8Reader, err := detectAndConvertToUTF8(sourceFile)
	if err != nil {
		return fmt.Errorf("failed to convert source file to UTF-8: %w", err)
	}

	doc, err := htmlquery.Parse(utf8Reader)
	if err != nil {
		return fmt.Errorf("failed to parse source file: %w", err)
	}

	for _, processor := range processors {
		if err := processor(doc, result, buildCtx, build); err != nil {
			return err
		}
	}

	// Remove specified HTML nodes by XPath
	for _, xpath := range htmlOptions.RemoveTagXPaths {
		nodes, err := htmlquery.QueryAll(doc, xpath)
		if err != nil {
			return fmt.Errorf("invalid xpath %q: %w", xpath, err)
		}
		for _, node := range nodes {
			if node.Parent != nil {
				node.Parent.RemoveChild(node)
			}
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return err
	}

	outFile := buildCtx.IndexHtml
	if err := os.MkdirAll(filepath.Dir(outFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(outFile, buf.Bytes(), 0644)
}

func detectAndConvertToUTF8(r io.Reader) (io.Reader, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	encoding, _, _ := charset.DetermineEncoding(b, "")

	utf8Reader := transform.NewReader(bytes.NewReader(b), encoding.NewDecoder())
	return utf8Reader, nil
}
