/*
Package layout implements section-based template composition: a template
file is executed once, named fragments of its output are captured into a
section table, and callers read those fragments back individually for
placement into an outer page.

Sections are declared with balanced Begin/End pairs and follow a strict
LIFO discipline, so nesting is allowed but interleaving is not. Captured
text is returned with {{ name }} placeholders substituted from a
variable map; unknown placeholders are left intact. The Compositor
memoizes its capture pass, so a template file is executed at most once
no matter how many sections are read from it.

The package is engine-agnostic. Template execution happens through the
Executor interface, and a Compositor can also be driven imperatively
with Begin, Write and End when no template file is involved at all.
*/
package layout
