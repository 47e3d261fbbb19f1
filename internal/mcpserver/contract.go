package mcpserver

// RecordFormatContract describes how records are stored so that LLM
// consumers can pick ids, fields and filters that round-trip.
const RecordFormatContract = `# Siena Record Format

A store is a directory. Each sub-directory is a **collection**; each file in
it is one **record**. The record id is the file name without its extension.

## File kinds

| Extension | Encoding |
|---|---|
| ` + "`.yml`, `.yaml`" + ` | A single YAML mapping; every top-level key is a field. |
| ` + "`.md`, `.markdown`" + ` | YAML front matter between ` + "`---`" + ` lines, then a Markdown body. |

Records created through the tools are always ` + "`.yml`" + ` files.

` + "```" + `markdown
---
title: Hello
date: 2024-05-01
views: 3
---

Body in *Markdown*.
` + "```" + `

Reading a Markdown record adds two fields:

- ` + "`content_raw`" + `: the body, trimmed.
- ` + "`content`" + `: the body rendered to HTML.

Both replace any header keys of the same name and are never written back
into the header. Setting ` + "`content_raw`" + ` on a Markdown record replaces its body.

## Field values

Values are strings, non-negative integers, booleans, mappings or lists.
Dates are kept as strings. Null, floats and negative numbers are rejected.
Fields are passed to the tools as a JSON (or YAML) object, e.g.
` + "`{\"title\": \"Hello\", \"views\": 3, \"tags\": [\"a\", \"b\"]}`" + `.

## Filters

Filters are a JSON array applied in order:

` + "```" + `json
[
  {"op": "is", "key": "status", "value": "published"},
  {"op": "is_not", "key": "draft", "value": "true"},
  {"op": "any_is", "keys": ["author", "editor"], "value": "ana"},
  {"op": "has", "key": "cover"},
  {"op": "has_not", "key": "archived"},
  {"op": "matches", "key": "title", "value": "^Release"}
]
` + "```" + `

- ` + "`is`" + `, ` + "`any_is`" + ` and ` + "`matches`" + ` only match string values.
- ` + "`is_not`" + ` keeps everything ` + "`is`" + ` would drop, including records without the key.
- The key ` + "`id`" + ` addresses the record id.

## Sorting and windows

` + "`sort`" + ` names a key, ` + "`order`" + ` is ` + "`asc`" + ` (default) or ` + "`desc`" + `. Strings sort
lexically and integers numerically; records missing the key, or holding a
value of another kind, come last. Use either ` + "`page`" + ` (1-based) with
` + "`page_size`" + `, or ` + "`limit`" + ` and ` + "`offset`" + `.

## Ids

A ` + "`:id`" + ` token in a new record id is replaced by a random UUID, e.g.
` + "`note-:id`" + `. Ids and collection names are single path segments.
`
