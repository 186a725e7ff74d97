// Package source はドキュメントソース（YouTube動画）の取得と解析を提供する。
//
// 動画URLから動画ID・基本情報・字幕トラック・トランスクリプトを取得する。
// 外部サイトへのフェッチはすべてSSRF検証付きクライアントで行い、
// 取得したテキストはサニタイズしてから返す。
package source

import "regexp"

// videoIDPatterns は動画URLから動画IDを抽出する正規表現。
// watch / youtu.be / embed / v 形式のURLに対応する。
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/v/([^&\n?#]+)`),
}

// ExtractVideoID はYouTube URLから動画IDを抽出する。
// どのパターンにも一致しない場合は空文字列を返す。
func ExtractVideoID(rawURL string) string {
	for _, pattern := range videoIDPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}
