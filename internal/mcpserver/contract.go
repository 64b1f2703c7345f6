package mcpserver

// FrontmatterContract describes how posts and notes are laid out on disk
// and which frontmatter fields the site reads.
const FrontmatterContract = `# Grayside Content Contract

Every post and note is an ` + "`index.md`" + ` inside its own directory.

## Directory naming

` + "```" + `text
pages/2017-11-02---my-first-post/index.md     -> /my-first-post/
pages/notes/2019-03-01---LTI Notes/index.md  -> /notes/lti-notes/
` + "```" + `

1. The parent directory name MUST contain ` + "`---`" + `. The text after the
   **last** ` + "`---`" + ` becomes the slug; the text before it is free (usually a date).
2. The slug segment is kebab-cased: lower case, words joined by ` + "`-`" + `,
   accents removed, camelCase split (` + "`myPost`" + ` -> ` + "`my-post`" + `).
3. A directory without ` + "`---`" + `, or with nothing after it, is rejected.
4. Any directory below a ` + "`notes`" + ` path segment publishes under ` + "`/notes/`" + `.
5. Two files resolving to the same slug is a build error.

## Frontmatter

` + "```" + `markdown
---
title: My first post        # REQUIRED for display; falls back to the first H1
subtitle: A short teaser    # OPTIONAL
layout: post                # post | note; defaults to note below notes/, else post
date: 2017-11-02            # OPTIONAL - YYYY-MM-DD or RFC 3339
draft: false                # OPTIONAL - drafts get a page but are never listed
tags:                       # OPTIONAL - list, or a comma separated string
  - JavaScript
  - react hooks
highlight: "#ffcc00"        # OPTIONAL - page accent passed to the template
shadow: soft                # OPTIONAL - page shadow passed to the template
---
` + "```" + `

## Tags

- Each tag gets a page at ` + "`/tags/<kebab-case tag>/`" + ` (` + "`react hooks`" + ` -> ` + "`/tags/react-hooks/`" + `).
- Tags differing only in case or punctuation share one page.
- A tag's colour is fixed by its name; use the ` + "`tag_color`" + ` tool to preview it.
`
