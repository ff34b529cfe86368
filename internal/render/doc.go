// Package render converts a document's block tree into Hugo-flavoured
// Markdown.
//
// Three pieces cooperate:
//
//   - RichText and Span format inline rich text spans.
//   - Renderer turns one block into text, downloading images and files
//     through an AssetFetcher.
//   - Walker pages through the block tree depth-first and stitches the
//     rendered blocks together, threading indentation and table-header
//     state down the recursion in a State value.
//
// Example output for a heading, a paragraph and a captioned image:
//
//	# Title
//
//	Some **bold** text
//
//	<p align="center"><img max-width="100%" max-height="100%" src="./images/9E1C...png" /></p>
//	<figure><figcaption class="image-caption">Caption</figcaption></figure>
//
package render
