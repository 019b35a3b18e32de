package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// URLDisplayLimit is the longest link text, in runes, shown unshortened.
const URLDisplayLimit = 60

const ellipsis = "..."

// MentionResolver maps a typed username to its profile path. Matching is
// case-insensitive.
type MentionResolver interface {
	ResolveMention(username string) (profilePath string, ok bool)
}

// VideoSource is the part of a commentable the timestamp pass needs.
type VideoSource interface {
	HasVideo() bool
	VideoSeekURL(offsetSeconds int) string
}

type EnrichOptions struct {
	Mentions  MentionResolver
	Video     VideoSource
	AppDomain string // links to this host (or its subdomains) stay followed
}

var (
	mentionPattern   = regexp.MustCompile(`@([A-Za-z0-9_]+)`)
	timestampPattern = regexp.MustCompile(`(?:(\d{1,2}):)?(\d{1,2})?:([0-5]\d)`)
)

// EnrichHTML post-processes rendered comment HTML. The passes run in a fixed
// order: nofollow external links, link @mentions, shorten long URL texts,
// then link timestamps when the commentable has a video.
func EnrichHTML(htmlStr string, opts EnrichOptions) (string, error) {
	if htmlStr == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	body := doc.Find("body")

	addNofollow(body, opts.AppDomain)
	if opts.Mentions != nil {
		linkMentions(body, opts.Mentions)
	}
	shortenURLs(body)
	if opts.Video != nil && opts.Video.HasVideo() {
		linkTimestamps(body, opts.Video)
	}

	out, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return out, nil
}

func addNofollow(root *goquery.Selection, appDomain string) {
	root.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !isExternalLink(href, appDomain) {
			return
		}
		rel := strings.Fields(s.AttrOr("rel", ""))
		for _, token := range rel {
			if strings.EqualFold(token, "nofollow") {
				return
			}
		}
		s.SetAttr("rel", strings.Join(append(rel, "nofollow"), " "))
	})
}

func isExternalLink(href, appDomain string) bool {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if appDomain == "" {
		return true
	}
	host := strings.ToLower(u.Hostname())
	domain := strings.ToLower(appDomain)
	return host != domain && !strings.HasSuffix(host, "."+domain)
}

func linkMentions(root *goquery.Selection, resolver MentionResolver) {
	for _, n := range textNodes(root) {
		text := n.Data
		var parts []*html.Node
		last := 0
		for _, m := range mentionPattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[0], m[1]
			if !mentionBoundary(text[:start]) {
				continue
			}
			path, ok := resolver.ResolveMention(text[m[2]:m[3]])
			if !ok {
				continue
			}
			parts = append(parts,
				textNode(text[last:start]),
				anchorNode(path, text[start:end], "mentioned-user"),
			)
			last = end
		}
		if parts != nil {
			splice(n, append(parts, textNode(text[last:])))
		}
	}
}

// mentionBoundary reports whether an @ following prefix can open a mention.
// Letters, digits and the characters that appear inside e-mail local parts
// or URLs disqualify it, so hello@alice.com is never a mention.
func mentionBoundary(prefix string) bool {
	if prefix == "" {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(prefix)
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return false
	}
	return !strings.ContainsRune("_.-+%/@=&~`'", r)
}

func shortenURLs(root *goquery.Selection) {
	root.Find("a").Each(func(i int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		text := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(text, "http://") && !strings.HasPrefix(text, "https://") {
			return
		}
		if utf8.RuneCountInString(text) <= URLDisplayLimit {
			return
		}
		s.SetText(truncateRunes(text, URLDisplayLimit-len(ellipsis)) + ellipsis)
	})
}

func linkTimestamps(root *goquery.Selection, video VideoSource) {
	for _, n := range textNodes(root) {
		text := n.Data
		var parts []*html.Node
		last := 0
		for _, m := range timestampPattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[0], m[1]
			if !timestampBoundary(text, start, end) {
				continue
			}
			seconds := timestampSeconds(text, m)
			parts = append(parts,
				textNode(text[last:start]),
				anchorNode(video.VideoSeekURL(seconds), text[start:end], ""),
			)
			last = end
		}
		if parts != nil {
			splice(n, append(parts, textNode(text[last:])))
		}
	}
}

func timestampBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if r == ':' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if r == ':' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// timestampSeconds converts H:MM:SS, MM:SS or :SS submatches to seconds.
func timestampSeconds(text string, m []int) int {
	group := func(i int) int {
		if m[2*i] < 0 {
			return 0
		}
		v, _ := strconv.Atoi(text[m[2*i]:m[2*i+1]])
		return v
	}
	return group(1)*3600 + group(2)*60 + group(3)
}

// textNodes collects the text nodes under root that are not inside links or
// code, in document order.
func textNodes(root *goquery.Selection) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			out = append(out, n)
			return
		case n.Type == html.ElementNode && (n.DataAtom == atom.A || n.DataAtom == atom.Code || n.DataAtom == atom.Pre):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range root.Nodes {
		walk(n)
	}
	return out
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func anchorNode(href, text, class string) *html.Node {
	a := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.A,
		Data:     "a",
		Attr:     []html.Attribute{{Key: "href", Val: href}},
	}
	if class != "" {
		a.Attr = append([]html.Attribute{{Key: "class", Val: class}}, a.Attr...)
	}
	a.AppendChild(textNode(text))
	return a
}

// splice replaces n with nodes, dropping empty text nodes.
func splice(n *html.Node, nodes []*html.Node) {
	parent := n.Parent
	for _, r := range nodes {
		if r.Type == html.TextNode && r.Data == "" {
			continue
		}
		parent.InsertBefore(r, n)
	}
	parent.RemoveChild(n)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
