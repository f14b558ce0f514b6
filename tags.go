// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package earthplugin

import (
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// InjectPoint is where a tag is placed in the page.
type InjectPoint string

const (
	InjectHeadPrepend InjectPoint = "head-prepend"
	InjectHead        InjectPoint = "head"
	InjectBodyPrepend InjectPoint = "body-prepend"
	InjectBody        InjectPoint = "body"
)

// HtmlTagDescriptor is one tag to inject into the output page.
type HtmlTagDescriptor struct {
	Tag      string           // "link" or "script"
	Attrs    []html.Attribute // attributes in emission order
	Children string           // inline body
	InjectTo InjectPoint
}

// Attr returns the value of the named attribute.
func (d HtmlTagDescriptor) Attr(key string) (string, bool) {
	for _, a := range d.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Node builds a detached html node for the descriptor.
func (d HtmlTagDescriptor) Node() *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     d.Tag,
		DataAtom: atom.Lookup([]byte(d.Tag)),
		Attr:     append([]html.Attribute(nil), d.Attrs...),
	}
	if d.Children != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: d.Children})
	}
	return n
}

func stylesheetTag(href string) HtmlTagDescriptor {
	return HtmlTagDescriptor{
		Tag: "link",
		Attrs: []html.Attribute{
			{Key: "rel", Val: "stylesheet"},
			{Key: "href", Val: href},
		},
		InjectTo: InjectHead,
	}
}

func scriptTag(src string) HtmlTagDescriptor {
	return HtmlTagDescriptor{
		Tag:      "script",
		Attrs:    []html.Attribute{{Key: "src", Val: src}},
		InjectTo: InjectHead,
	}
}

func globalAssignTag(name, value string) HtmlTagDescriptor {
	return HtmlTagDescriptor{
		Tag:      "script",
		Children: fmt.Sprintf("window[%s] = %s", jsString(name), jsString(value)),
		InjectTo: InjectHead,
	}
}

// EmitHtmlTags returns the ordered tags that make one target loadable by the page.
func EmitHtmlTags(target ResolvedTarget) []HtmlTagDescriptor {
	p := target.Preset
	var tags []HtmlTagDescriptor

	switch target.DeliveryMode {
	case DevServe, BuildBundled:
		if p.Stylesheet != "" {
			tags = append(tags, stylesheetTag(joinAssetURL(target.BaseURL, p.Stylesheet)))
		}

	case BuildExternal:
		if p.Stylesheet != "" {
			tags = append(tags, stylesheetTag(joinAssetURL(target.BaseURL, p.Stylesheet)))
		}
		if p.BaseURLGlobal != "" {
			tags = append(tags, globalAssignTag(p.BaseURLGlobal, target.BaseURL))
		}
		tags = append(tags, scriptTag(joinAssetURL(target.BaseURL, p.EntryScript)))

	case BuildCDN:
		for _, c := range p.Companions {
			root := cdnRoot(target.CDNBase, c.PackageName, target.CompanionVersions[c.Key], "")
			tags = append(tags, scriptTag(joinAssetURL(root, c.File)))
		}
		if p.Stylesheet != "" {
			tags = append(tags, stylesheetTag(joinAssetURL(target.CDNRoot, p.Stylesheet)))
		}
		if p.BaseURLGlobal != "" {
			tags = append(tags, globalAssignTag(p.BaseURLGlobal, target.CDNRoot))
		}
		tags = append(tags, scriptTag(joinAssetURL(target.CDNRoot, p.EntryScript)))
	}

	return tags
}

// EmitAllHtmlTags concatenates the tags of every target in the build context.
// Renderer tags always come before the tags of the toolkits that need their global.
func EmitAllHtmlTags(buildCtx *BuildContext) []HtmlTagDescriptor {
	var tags []HtmlTagDescriptor
	for _, t := range buildCtx.Targets {
		tags = append(tags, EmitHtmlTags(t)...)
	}
	return tags
}
