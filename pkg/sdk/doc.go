// Package lexibase provides an embedded Go client for the lexibase document
// search pipeline backed by Valkey or Redis with search modules.
//
// The client wires the full pipeline in-process: document writes enqueue
// durable index jobs, an optional worker pool drains them, and Search runs
// embed → recall → rerank against the tenant's index.
//
//	client, _ := lexibase.New(ctx,
//		lexibase.WithValkey("localhost:6379", ""),
//		lexibase.WithEmbedder(embedder, 4096),
//		lexibase.WithReranker(reranker),
//	)
//	defer client.Close()
//
//	go client.RunWorker(ctx)
//
//	jobID, _ := client.Index(ctx, "tenant-a", "doc-1", "the content")
//	results, _ := client.Search(ctx, "tenant-a", "what was the content?")
package lexibase
