// Package engine provides Memory, an in-memory target engine.
//
// Memory keeps scene objects, bindings, deduplicated resources and property
// links in plain Go data and records every mutation in a journal, which makes
// it suitable for tests, the command line tool and dry runs.
package engine
