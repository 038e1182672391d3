package service

import (
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/xxxsen/notesync/internal/model"
)

const SummarySubject = "Toolbox usernotes transfer has completed!"

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// BuildSummary renders the end-of-run moderator message.
func BuildSummary(community string, counters model.RunCounters, settings model.Settings) string {
	var b strings.Builder
	b.WriteString("All Toolbox usernotes have been transferred to Mod Notes.\n\n")

	if counters.NotesTransferred > 0 || counters.UsersTransferred > 0 {
		b.WriteString(humanize.Comma(counters.NotesTransferred) + " " + plural(counters.NotesTransferred, "note", "notes") + " " +
			plural(counters.NotesTransferred, "was", "were") + " transferred for " +
			humanize.Comma(counters.UsersTransferred) + " " + plural(counters.UsersTransferred, "user", "users") + "\n\n")
		if counters.NotesErrored > 0 {
			b.WriteString(humanize.Comma(counters.NotesErrored) + " " + plural(counters.NotesErrored, "note", "notes") + " failed to transfer.\n\n")
		}
	} else {
		b.WriteString("No notes were found to transfer.\n\n")
	}

	if counters.UsersSkipped > 0 {
		b.WriteString("Notes were transferred for active users only. Notes for " + humanize.Comma(counters.UsersSkipped) +
			" suspended, shadowbanned or deleted " + plural(counters.UsersSkipped, "user", "users") + " were not transferred.\n\n")
	}

	if !settings.ForwardSync && !settings.ReverseSync {
		b.WriteString("Did you know? This app can do bidirectional synchronisation of new notes between Toolbox and native Mod Notes.")
		b.WriteString(" If you would find this useful, you can enable it [here](https://developers.reddit.com/r/" + community + "/apps/" + MirrorPageName + ").\n\n")
	}
	return b.String()
}
