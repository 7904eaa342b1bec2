// Package locale renders user-visible command replies in the invoker's language.
package locale

import (
	"golang.org/x/text/language"
)

// Key names one user-visible string.
type Key string

const (
	KeyCloseOnlyInTicket Key = "close.only_in_ticket"
	KeyCloseConfirmed    Key = "close.confirmed"
	KeyCloseNoticeTitle  Key = "close.notice_title"
	KeyCloseNoticeBody   Key = "close.notice_body"
	KeyStaffOnly         Key = "staff_only"
	KeyMemberRemoved     Key = "member.removed"
	KeyMemberBanned      Key = "member.banned"
	KeyCommandFailed     Key = "command.failed"
	KeyUnknownCommand    Key = "command.unknown"
	KeyPong              Key = "ping.pong"
)

var supported = []language.Tag{
	language.English,
	language.Japanese,
}

var matcher = language.NewMatcher(supported)

var catalog = map[language.Tag]map[Key]string{
	language.English: {
		KeyCloseOnlyInTicket: "This command can only be used in a ticket channel.",
		KeyCloseConfirmed:    "The ticket has been closed.",
		KeyCloseNoticeTitle:  "Inquiry",
		KeyCloseNoticeBody:   "Staff have closed your inquiry.\nIf your issue is not resolved yet, please send us a new message.",
		KeyStaffOnly:         "This command is for staff only.",
		KeyMemberRemoved:     "✅ Member removed.",
		KeyMemberBanned:      "✅ Member banned.",
		KeyCommandFailed:     "The command could not be completed. Please try again later.",
		KeyUnknownCommand:    "Unknown command.",
		KeyPong:              "Pong!",
	},
	language.Japanese: {
		KeyCloseOnlyInTicket: "このコマンドはチケットチャンネルでのみ使用できます。",
		KeyCloseConfirmed:    "お問い合わせを閉じました。",
		KeyCloseNoticeTitle:  "問い合わせ",
		KeyCloseNoticeBody:   "問い合わせを運営が終了しました\nまだ問題解決していない場合はお手数ですが、再度お問い合わせをお願いします。",
		KeyStaffOnly:         "このコマンドは運営のみ使用できます。",
		KeyMemberRemoved:     "✅ メンバーを削除しました。",
		KeyMemberBanned:      "✅ メンバーをBANしました。",
		KeyCommandFailed:     "コマンドを完了できませんでした。時間をおいて再度お試しください。",
		KeyUnknownCommand:    "不明なコマンドです。",
		KeyPong:              "Pong!",
	},
}

// Catalog resolves messages for a platform locale such as "ja" or "en-US".
type Catalog struct {
	fallback language.Tag
}

// NewCatalog builds a catalog that falls back to the given tag (English when empty or unsupported).
func NewCatalog(fallback string) *Catalog {
	return &Catalog{fallback: Match(fallback, language.English)}
}

// Message returns the string for key in the best matching supported language.
func (c *Catalog) Message(locale string, key Key) string {
	tag := Match(locale, c.fallback)
	if msg, ok := catalog[tag][key]; ok {
		return msg
	}
	return catalog[language.English][key]
}

// Match picks the supported tag closest to locale, or fallback when nothing matches.
func Match(locale string, fallback language.Tag) language.Tag {
	if locale == "" {
		return fallback
	}
	requested, err := language.Parse(locale)
	if err != nil {
		return fallback
	}
	_, index, confidence := matcher.Match(requested)
	if confidence == language.No {
		return fallback
	}
	return supported[index]
}
