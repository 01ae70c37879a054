package imap

import (
	"sort"

	"github.com/emersion/go-imap"
)

const fallbackWindow = 50

// searchCandidates picks the UIDs to fetch, first non-empty tier wins:
// everything above the cursor, then unread, then the most recent window of all.
func (f *fetcher) searchCandidates(c mailClient, settings connectionSettings, cursor *uint32) []uint32 {
	prefix := logPrefix(settings)

	if cursor != nil {
		criteria := imap.NewSearchCriteria()
		criteria.Uid = new(imap.SeqSet)
		criteria.Uid.AddRange(*cursor+1, 0)

		uids, err := c.UidSearch(criteria)
		if err != nil {
			f.log.Warnf("%s UID search failed: %v", prefix, err)
		} else if uids = aboveCursor(uids, *cursor); len(uids) > 0 {
			return sortedUIDs(uids)
		}
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		f.log.Warnf("%s UNSEEN search failed: %v", prefix, err)
	} else if len(uids) > 0 {
		return sortedUIDs(uids)
	}

	uids, err = c.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		f.log.Errorf("%s ALL search failed: %v", prefix, err)
		return nil
	}
	uids = sortedUIDs(uids)
	if len(uids) > fallbackWindow {
		uids = uids[len(uids)-fallbackWindow:]
	}
	return uids
}

// aboveCursor drops UIDs at or below the cursor. "N:*" always matches the
// highest UID in the folder, even when it is lower than N.
func aboveCursor(uids []uint32, cursor uint32) []uint32 {
	filtered := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		if uid > cursor {
			filtered = append(filtered, uid)
		}
	}
	return filtered
}

func sortedUIDs(uids []uint32) []uint32 {
	sorted := append([]uint32(nil), uids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}

// batches splits uids into chunks of at most size.
func batches(uids []uint32, size int) [][]uint32 {
	var out [][]uint32
	for start := 0; start < len(uids); start += size {
		end := start + size
		if end > len(uids) {
			end = len(uids)
		}
		out = append(out, uids[start:end])
	}
	return out
}
