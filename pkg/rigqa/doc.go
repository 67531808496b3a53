// Package rigqa embeds the document QA engine in other Go programs.
//
// A Corpus bundles the stores, retrieval engine, and answer service
// behind the rigqa CLI: open a data directory, index a directory of
// operational documents, and ask questions against them.
//
//	corpus, err := rigqa.Open(ctx, dataDir, rigqa.WithOffline())
//	if err != nil {
//		return err
//	}
//	defer corpus.Close()
//
//	if _, err := corpus.IndexDir(ctx, "./reports"); err != nil {
//		return err
//	}
//
//	answer, err := corpus.Ask(ctx, "What was done on 6-Sept?")
//	if err != nil {
//		return err
//	}
//	fmt.Println(answer.Text)
//
// By default Open probes the configured Ollama backends for embeddings
// and answer generation. WithOffline selects hash-based static
// embeddings and extractive answers instead; everything then runs
// locally with reduced semantic quality.
//
// A Corpus holds an exclusive lock on its data directory until Close.
// Queries and indexing are safe for concurrent use within one Corpus.
package rigqa
