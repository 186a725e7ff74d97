package source

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// pageMeta はHTMLのmeta要素から抽出したページメタデータ。
// 正規表現によるプレイヤーデータの抽出が失敗した場合のフォールバックに使用する。
type pageMeta struct {
	Title       string
	Description string
}

// parsePageMeta はHTMLのheadタグからOpen Graphメタデータを解析する。
// og:title / og:description を優先し、og:titleがない場合はtitle要素を使用する。
func parsePageMeta(htmlBody []byte) pageMeta {
	var meta pageMeta

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inTitle := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return meta

		case html.TextToken:
			if inTitle && meta.Title == "" {
				meta.Title = strings.TrimSpace(string(tokenizer.Text()))
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = false
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "title" {
				inTitle = true
				continue
			}

			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return meta
			}

			if tagName != "meta" || !hasAttr {
				continue
			}

			// meta要素のproperty/content属性を解析
			var property, content string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "property", "name":
					property = strings.ToLower(string(val))
				case "content":
					content = string(val)
				}
				if !more {
					break
				}
			}

			switch property {
			case "og:title":
				meta.Title = content
			case "og:description", "description":
				if meta.Description == "" {
					meta.Description = content
				}
			}
		}
	}
}
