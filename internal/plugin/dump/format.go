// Package dump is a conforming Typed Consumer View consumer: it reads scan
// events off a broker and formats them to an io.Writer. It exists to
// demonstrate a correct consumer, not to cover output formatting as a
// first-class concern.
package dump

import (
	"fmt"

	"github.com/repostats/repostats/internal/scanevents"
)

// Format renders one scan event as a single human-readable line.
func Format(event scanevents.Event) string {
	switch ev := event.(type) {
	case scanevents.RepositoryData:
		return fmt.Sprintf("[%s] repository %s (%s)", ev.ScannerID, ev.RepositoryData.CanonicalID, ev.RepositoryData.LocalPath)
	case scanevents.ScanStarted:
		return fmt.Sprintf("[%s] scan started for %s", ev.ScannerID, ev.RepositoryData.CanonicalID)
	case scanevents.CommitData:
		return fmt.Sprintf("[%s] commit %s %s (+%d/-%d) %s", ev.ScannerID, ev.CommitInfo.ShortHash, ev.CommitInfo.AuthorName, ev.CommitInfo.Insertions, ev.CommitInfo.Deletions, firstLine(ev.CommitInfo.Message))
	case scanevents.FileChange:
		return fmt.Sprintf("[%s]   %s %s (+%d/-%d)", ev.ScannerID, ev.ChangeData.ChangeType, ev.FilePath, ev.ChangeData.Insertions, ev.ChangeData.Deletions)
	case scanevents.ScanCompleted:
		return fmt.Sprintf("[%s] scan completed: %d commits, %d files, +%d/-%d", ev.ScannerID, ev.Stats.TotalCommits, ev.Stats.TotalFilesChanged, ev.Stats.TotalInsertions, ev.Stats.TotalDeletions)
	case scanevents.ScanError:
		return fmt.Sprintf("[%s] scan error: %s (%s)", ev.ScannerID, ev.Error, ev.Context)
	default:
		return fmt.Sprintf("[unknown event type %s]", event.MessageType())
	}
}

func firstLine(message string) string {
	for i, r := range message {
		if r == '\n' {
			return message[:i]
		}
	}
	return message
}
