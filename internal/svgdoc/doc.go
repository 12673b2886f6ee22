// Package svgdoc provides a small, order-preserving XML tree used to build,
// parse and serialize SVG documents.
//
// Parsing and serialization are boundary operations: the vectorizer builds a
// Document directly, the annotator appends elements to it, and only the
// server/pipeline edges convert to and from text. Element and attribute
// order is preserved exactly, which makes serialization deterministic and
// lets Optimize be idempotent.
//
// Namespace prefixes are kept verbatim ("xlink:href" stays "xlink:href");
// no namespace resolution is performed.
package svgdoc
