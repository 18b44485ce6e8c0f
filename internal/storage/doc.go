// Package storage provides SQLite-based persistence for script content and
// its embeddings.
//
// # Database Schema
//
// Tables:
//   - content_items: scenes, dialogue, action lines and entity records keyed
//     by (type, id), with JSON metadata and an optional sequence order
//   - embeddings: one vector per (entity_type, entity_id, model)
//   - embedding_cache: the durable layer of embedder.Cache, keyed by
//     (content hash, model)
//   - schema_version: applied migrations
//
// Vectors are stored as little-endian float32 blobs. Rows that only carry
// the vector_json column, or whose blob cannot be decoded, are read from the
// JSON form instead.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.scriptrag/script.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	err = db.UpsertContent(ctx, &types.ContentItem{
//	    ID:   "d42",
//	    Type: types.TypeDialogue,
//	    Text: "We leave at dawn.",
//	    Metadata: map[string]any{"character": "SARAH", "sequence": 42},
//	})
//
//	items, err := db.SearchContent(ctx, types.ContentQuery{
//	    Types:        []types.ContentType{types.TypeDialogue},
//	    Terms:        []string{"dawn"},
//	    EntityFilter: map[string]any{"character": "SARAH"},
//	})
//
// # Transactions
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.UpsertContent(ctx, item)
//	_ = tx.UpsertEmbedding(ctx, record)
//
//	if err := tx.Commit(); err != nil {
//	    return err
//	}
//
// # Build Tags
//
// The default build uses modernc.org/sqlite and needs no C compiler. Building
// with -tags sqlite_vec switches to github.com/mattn/go-sqlite3.
package storage
