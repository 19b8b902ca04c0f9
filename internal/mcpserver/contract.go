package mcpserver

// ContentFormat describes the content types and their fields for LLM
// consumers that create or update documents.
const ContentFormat = `# Insighthink Content Format

Documents live in five collections. Every create takes a flat JSON object
of fields; anything not listed for a collection is ignored.

## Collections

| collection | required      | fields |
|------------|---------------|--------|
| books      | title, author | description, content, genres, pageCount, readingTime, publishedYear, isbn, language, chapters, keyTerms |
| videos     | title         | description, embedUrl, thumbnailUrl, creatorName, creatorAvatarUrl, category, tags, duration |
| articles   | title         | author, content, excerpt, coverImageUrl, tags, readingTime, published |
| posts      | title         | content, imageUrl, tags (needs a signed-in author; not available here) |
| curated    | title         | description, sourceUrl, sourceName, curatorName, thumbnailUrl, category, tags |

## Field rules

1. **Text** values are trimmed. For a list, only the first element is used.
2. **Tags and genres** are a comma-separated string or a list of strings.
   Empty entries are dropped: ` + "`" + `"Fiction, Sci-Fi, , Fantasy"` + "`" + ` becomes
   ` + "`" + `["Fiction", "Sci-Fi", "Fantasy"]` + "`" + `.
3. **Numbers** (pageCount, readingTime, publishedYear, duration) must be whole
   numbers. Anything else is ignored.
4. **chapters** is a list of ` + "`" + `{"title", "content", "order"}` + "`" + `; missing
   order values follow list position. **keyTerms** is a list of
   ` + "`" + `{"term", "definition"}` + "`" + `. Malformed values become an empty list.
5. Articles without an excerpt or reading time get them derived from the
   content (200 words per minute). Content may be Markdown, HTML or
   block-editor JSON.
6. Missing attribution (creatorName, author of an article, curatorName)
   defaults to "Anonymous User".

## Images

Attach images with the ` + "`" + `attach_image` + "`" + ` tool, or pass them in the
` + "`" + `assets` + "`" + ` argument of ` + "`" + `create_content` + "`" + `. A source is a base64 data URI
(` + "`" + `data:image/png;base64,...` + "`" + `) or an http(s) URL.

| collection | asset fields |
|------------|--------------|
| books      | coverImage |
| videos     | thumbnail, creatorAvatar |
| articles   | coverImage |
| curated    | thumbnail |

- Accepted types: image/jpeg, image/png, image/webp. The content must match
  the type.
- Maximum size: 5 MiB.
- Replacing an image removes the previously uploaded one.

## Example

` + "```" + `json
{
  "collection": "books",
  "fields": {
    "title": "Dune",
    "author": "Frank Herbert",
    "genres": "Fiction, Sci-Fi",
    "chapters": [{"title": "Arrakis", "content": "..."}]
  },
  "assets": {"coverImage": "https://example.com/dune.jpg"}
}
` + "```" + `
`
