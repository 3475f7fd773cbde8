package search

const schema = `
-- One row per indexed chapter; doc_id is the chapter id.
CREATE TABLE IF NOT EXISTS documents (
    doc_id INTEGER PRIMARY KEY,
    data TEXT NOT NULL,
    book_id INTEGER NOT NULL,
    book_title TEXT NOT NULL DEFAULT '',
    chapter_id INTEGER NOT NULL,
    chapter_filename TEXT NOT NULL DEFAULT '',
    chapter_title TEXT NOT NULL DEFAULT '',
    namespace TEXT NOT NULL DEFAULT '',
    author_name TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL DEFAULT '',
    doc_length INTEGER NOT NULL,
    indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_documents_book ON documents(book_id);

-- Raw terms and Z-prefixed stems share the dictionary.
CREATE TABLE IF NOT EXISTS terms (
    term_id INTEGER PRIMARY KEY AUTOINCREMENT,
    term TEXT UNIQUE NOT NULL
);

-- positions is a space separated list of word offsets.
CREATE TABLE IF NOT EXISTS postings (
    term_id INTEGER NOT NULL,
    doc_id INTEGER NOT NULL,
    term_frequency INTEGER NOT NULL,
    positions TEXT NOT NULL,
    PRIMARY KEY (term_id, doc_id),
    FOREIGN KEY (term_id) REFERENCES terms(term_id),
    FOREIGN KEY (doc_id) REFERENCES documents(doc_id)
);
CREATE INDEX IF NOT EXISTS idx_postings_doc ON postings(doc_id);
`
