/*
Package minify shrinks rendered HTML before it is cached or sent to the
client. It works on the token stream rather than a parsed tree, so tag
internals pass through byte-for-byte and only text nodes and comments
are touched: whitespace runs collapse to a single space and comments
are dropped.

Script and style bodies are always left verbatim, since collapsing
whitespace there can change meaning. Presentation elements that depend
on their whitespace (pre, code, textarea) are preserved only when
Options.SkipCodeBlocks is set. Options.CopyButton additionally injects
a copy-to-clipboard button into pre blocks that wrap code, which pages
can wire up with a small script.
*/
package minify
