package model

// NativeLabel is the closed set of labels the native note API accepts.
type NativeLabel string

const (
	LabelBotBan           NativeLabel = "BOT_BAN"
	LabelPermaBan         NativeLabel = "PERMA_BAN"
	LabelBan              NativeLabel = "BAN"
	LabelAbuseWarning     NativeLabel = "ABUSE_WARNING"
	LabelSpamWarning      NativeLabel = "SPAM_WARNING"
	LabelSpamWatch        NativeLabel = "SPAM_WATCH"
	LabelSolidContributor NativeLabel = "SOLID_CONTRIBUTOR"
	LabelHelpfulUser      NativeLabel = "HELPFUL_USER"
)

type NativeLabelOption struct {
	Label string      `json:"label"`
	Value NativeLabel `json:"value"`
}

// NativeLabels is the form choice set, in display order.
var NativeLabels = []NativeLabelOption{
	{Label: "Bot Ban", Value: LabelBotBan},
	{Label: "Permaban", Value: LabelPermaBan},
	{Label: "Ban", Value: LabelBan},
	{Label: "Abuse Warning", Value: LabelAbuseWarning},
	{Label: "Spam Warning", Value: LabelSpamWarning},
	{Label: "Spam Watch", Value: LabelSpamWatch},
	{Label: "Solid Contributor", Value: LabelSolidContributor},
	{Label: "Helpful User", Value: LabelHelpfulUser},
}

func (l NativeLabel) Valid() bool {
	for _, opt := range NativeLabels {
		if opt.Value == l {
			return true
		}
	}
	return false
}

// NoteTypeMapping maps one legacy note type key to a native label.
type NoteTypeMapping struct {
	Key   string      `json:"key"`
	Value NativeLabel `json:"value"`
}
