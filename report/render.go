package report

import (
	"fmt"
	"strings"
)

const (
	headerLine     = "**DAILY REPORT**"
	didNotSendLine = "**Did Not Send :scream:**"
	streaksLine    = "**Streaks! :fire:**"
	kickedLine     = "**Kicked :x:**"
	noKicksLine    = "No one was kicked today!"
)

// render lays out the report sections in fixed order. Each section is
// separated by a blank line.
func render(res *Result, opts Options) string {
	var b strings.Builder

	b.WriteString(headerLine + "\n\n")

	b.WriteString(didNotSendLine + "\n")
	for _, year := range ClassYears {
		writeInactive(&b, year.Title(), res.Buckets[year])
	}
	if opts.IncludeOtherYears {
		writeInactive(&b, ClassYear(0).Title(), res.Unbucketed)
	}

	b.WriteString("\n" + streaksLine + "\n")
	for i, e := range res.Leaderboard {
		fmt.Fprintf(&b, "%d. %s - %d\n", i+1, e.FullName, e.Streak)
	}

	b.WriteString("\n")
	if len(res.Removed) == 0 {
		b.WriteString(noKicksLine + "\n")
	} else {
		b.WriteString(kickedLine + "\n")
		for i, r := range res.Removed {
			fmt.Fprintf(&b, "%d. %s\n", i+1, r.FullName)
		}
	}

	return b.String()
}

func writeInactive(b *strings.Builder, title string, members []InactiveMember) {
	if len(members) == 0 {
		return
	}
	b.WriteString("\n" + title + "\n")
	for i, m := range members {
		fmt.Fprintf(b, "%d. %s - %s\n", i+1, m.FullName, m.Label)
	}
}
