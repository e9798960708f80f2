package lexibase

import "context"

// Index stores a document's content for a tenant and enqueues an index job.
// Returns the job ID; the document becomes searchable once a worker indexes it.
func (c *Client) Index(ctx context.Context, tenantID, documentID, content string) (string, error) {
	return c.indexing.IndexDocument(ctx, tenantID, documentID, content)
}

// Reindex enqueues a fresh index job for already-stored content.
func (c *Client) Reindex(ctx context.Context, tenantID, documentID string) (string, error) {
	return c.indexing.Reindex(ctx, tenantID, documentID)
}

// Delete removes a document: content, index state, and pending jobs.
func (c *Client) Delete(ctx context.Context, tenantID, documentID string) error {
	return c.indexing.DeleteDocument(ctx, tenantID, documentID)
}
