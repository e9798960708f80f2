package lexibase

import "context"

// Status reads the current indexing pipeline state, including the recently
// indexed documents.
func (c *Client) Status(ctx context.Context) (Status, error) {
	snap, err := c.status.Snapshot(ctx, true)
	if err != nil {
		return Status{}, err
	}

	st := Status{
		QueueDepth:      snap.QueueDepth,
		InFlight:        snap.InFlight,
		FailedCount:     snap.FailedCount,
		IndexedCount:    snap.IndexedCount,
		Failed:          make([]FailedJob, len(snap.Failed)),
		RecentlyIndexed: make([]IndexedDocument, len(snap.RecentlyIndexed)),
		GeneratedAt:     snap.GeneratedAt,
	}
	for i, f := range snap.Failed {
		st.Failed[i] = FailedJob{
			JobID:      f.JobID,
			DocumentID: f.DocumentID,
			Attempts:   f.Attempts,
			LastError:  f.LastError,
			FailedAt:   f.FailedAt,
		}
	}
	for i, d := range snap.RecentlyIndexed {
		st.RecentlyIndexed[i] = IndexedDocument{DocumentID: d.DocumentID, IndexedAt: d.IndexedAt}
	}
	return st, nil
}
