// Package validate は変更系リクエストを受け付ける前の入力検証を提供する。
//
// すべての関数は副作用を持たず、どのような入力に対してもpanicしない。
// 空文字列や欠落値は不正な入力として分類する。
package validate

import (
	"html"
	"regexp"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ipv4Pattern は各オクテットが0〜255の10進数であるドット区切り4組にのみ一致する。
var ipv4Pattern = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

// strictPolicy はすべてのタグを除去するbluemondayポリシー。
// Policyはスレッドセーフに利用できる。
var strictPolicy = bluemonday.StrictPolicy()

// IsValidIPv4 はsがドット区切りのIPv4アドレス表記であればtrueを返す。
// IPv6、ホスト名、部分的なアドレスはすべてfalseになる。
func IsValidIPv4(s string) bool {
	return ipv4Pattern.MatchString(s)
}

// RequireFields はnamesの順に各項目の存在と非空を確認し、
// 最初に見つかった欠落項目名とfalseを返す。すべて揃っていれば("", true)を返す。
// 空白のみの値は欠落として扱う。
func RequireFields(data map[string]string, names []string) (string, bool) {
	for _, name := range names {
		if strings.TrimSpace(data[name]) == "" {
			return name, false
		}
	}
	return "", true
}

// IsValidEnum はvalueがallowedのいずれかと完全一致する場合にtrueを返す。
func IsValidEnum(value string, allowed []string) bool {
	if value == "" {
		return false
	}
	return slices.Contains(allowed, value)
}

// HasNoMarkup はsにHTMLタグやコメントが含まれていなければtrueを返す。
// bluemondayのStrictPolicyで除去される要素が1つでもあればマークアップありと判定する。
func HasNoMarkup(s string) bool {
	if s == "" {
		return true
	}
	return html.UnescapeString(strictPolicy.Sanitize(s)) == s
}
