package mcpserver

// ExportFormatContract describes the Markdown documents the exporter writes,
// so LLM consumers can read and cite them correctly.
const ExportFormatContract = `# notionhugo Export Format

Every exported document is a Hugo page bundle written below the content root.

## Layout

- Documents live under posts/<Category>/ (category defaults to Misc).
- Series parts live under posts/<Category>/<Subcategory>/ and their folder
  name starts with a two-digit index: 02-intro.
- The page file is index.md, or index.<lang>.md when the document has a
  language (index.fr.md).
- Every category and numbered series folder carries an _index.md listing stub.
  Stubs are not documents.

## Front matter

` + "```" + `yaml
---
Title: "Human-readable title"
Description: "Optional summary"
Category: "Tutorials"
Subcategory: "3-series"
series: ["3-series"]              # only for indexed series parts
Index: "2"
PublishDate: "2024-01-01 00:00:02Z" # index adds seconds so parts sort
Tags: ["go", "hugo"]
featuredImagePreview: 'featured-image-preview-en.png'
resources: [{name: featured-image-preview, src: featured-image-preview-en.png}]
draft: false
---
` + "```" + `

Keys keep the capitalisation of the source properties; draft is always false.
A <!--more--> marker follows the front matter when the document shows a summary.

## Body

- Images are centered HTML paragraphs pointing at ./images/<hash>.<ext>.
- Attachments are {{< link >}} shortcodes pointing at ./files/<name>.
- Callouts become {{< admonition >}} shortcodes.
- Series parts end with a {{< series "<name>" >}} footer.

## Tools

- list_exports and search_exports locate documents; read_export returns one.
- find_document maps a source page id to its exported path.
- export_page re-exports a single source page on demand.
`
