// Package locale holds the user-facing strings of the upload flow: HTTP
// messages and the mail sent back to the submitter.
package locale

import "strings"

// DefaultLang 默认语言
const DefaultLang = "zh-TW"

// Catalog 一种语言下的全部用户可见文本
type Catalog struct {
	Lang string

	MissingFields    string
	InvalidEmail     string
	FieldTooLong     string
	PhotoTooLarge    string
	InvalidForm      string
	Throttled        string
	ServerError      string
	MethodNotAllowed string
	Success          string

	// MailSubject 与 MailBody 为 text/template 源，数据为 notify.Notification
	MailSubject string
	MailBody    string
}

var catalogs = map[string]*Catalog{
	"zh-tw": {
		Lang:             "zh-TW",
		MissingFields:    "缺少必要的欄位或文件",
		InvalidEmail:     "電子郵件格式不正確",
		FieldTooLong:     "欄位內容過長",
		PhotoTooLarge:    "照片檔案過大",
		InvalidForm:      "表單格式錯誤",
		Throttled:        "提交過於頻繁，請稍後再試。",
		ServerError:      "發生錯誤，請稍後再試。",
		MethodNotAllowed: "Method not allowed",
		Success:          "上傳成功，請查收您的電子郵件。",
		MailSubject:      "您的 Deepfake 照片",
		MailBody: `Hi {{.Nickname}},

這是您上傳的照片。請查收附件中的照片。

如果您有任何疑問或需要進一步協助，歡迎隨時與我們聯絡。

Best regards,
{{.Sender}}`,
	},
	"en": {
		Lang:             "en",
		MissingFields:    "Missing required fields or file",
		InvalidEmail:     "Invalid email address",
		FieldTooLong:     "Field value is too long",
		PhotoTooLarge:    "Photo is too large",
		InvalidForm:      "Invalid form data",
		Throttled:        "Too many submissions, please try again later.",
		ServerError:      "Something went wrong, please try again later.",
		MethodNotAllowed: "Method not allowed",
		Success:          "Upload successful, please check your email.",
		MailSubject:      "Your Deepfake photo",
		MailBody: `Hi {{.Nickname}},

Here is the photo you uploaded. Please find it attached.

If you have any questions or need further help, feel free to contact us.

Best regards,
{{.Sender}}`,
	},
}

// Lookup 按语言标签查找文本，未知语言回退到 zh-TW
// "en-US" 之类的地区标签会回退到其主语言
func Lookup(lang string) *Catalog {
	key := strings.ToLower(strings.TrimSpace(lang))
	if c, ok := catalogs[key]; ok {
		return c
	}
	if i := strings.IndexAny(key, "-_"); i > 0 {
		if c, ok := catalogs[key[:i]]; ok {
			return c
		}
	}
	return catalogs[strings.ToLower(DefaultLang)]
}
