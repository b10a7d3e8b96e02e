/*
Package tobject provides a hierarchical text-template engine built around a
small directive grammar embedded in plain markup.

A template is parsed once, in five ordered passes, into a rewritten markup
string plus two manifests: the blocks it defines and the variables it uses.

	<!-- EXTEND layout.html -->                  only at the start of a template
	<!-- INCLUDE partial.html -->
	<!-- BEGIN row [rsort] --> ... [<!-- EMPTY row --> ...] <!-- END row -->
	<!-- RECURSION tree -->
	{{NAME}}  {{NAME|raw}}  {{NAME|html|nl2br}}

Blocks are optional, repeatable regions. Each call to SetBlock parses the
block body into a new child Template that the caller binds independently,
so a table row, a list item or a nested tree node is just another Template.
Filters and global variables are copied into a child when it is created;
nothing is shared between a parent and its children afterwards.

Rendering is lazy and memoized. Output returns the cached text until the
template, or any instance below it, is mutated.

Recoverable conditions (unknown names, missing includes) are reported to the
configured slog.Logger and returned as errors to the caller; only cyclical
EXTEND or INCLUDE chains abort construction.

A Template is not safe for concurrent mutation.
*/
package tobject
